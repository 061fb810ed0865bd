package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"YoloPipeline/internal/entity"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// websocketDetector keeps one connection to a streaming inference service:
// a binary frame goes out, a JSON DetectionResult comes back.
type websocketDetector struct {
	url          string
	opts         Options
	log          *logrus.Logger
	conn         *websocket.Conn
	mu           sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewWebsocketDetector(url string, opts Options, log *logrus.Logger) IDetector {
	d := &websocketDetector{
		url:          url,
		opts:         opts,
		log:          log,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go d.connectInBackground()

	return d
}

func (d *websocketDetector) connectInBackground() {
	d.mu.Lock()
	var err error
	if d.conn == nil {
		err = d.reconnectLocked()
	}
	d.mu.Unlock()

	if err != nil {
		d.log.WithFields(logrus.Fields{
			"url":   d.url,
			"error": err.Error(),
		}).Warn("Initial connection to inference service failed, will retry on demand")
		return
	}
	d.log.WithField("url", d.url).Info("Connected to inference service")
}

func (d *websocketDetector) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

func (d *websocketDetector) Reconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reconnectLocked()
}

func (d *websocketDetector) reconnectLocked() error {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(d.url, nil)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %v", ErrNotConnected, d.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.writeTimeout)); err != nil {
			d.log.WithField("error", err.Error()).Debug("Error sending pong")
		}
		return nil
	})

	d.conn = conn
	go d.keepAlive(conn)

	return nil
}

func (d *websocketDetector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		d.mu.Lock()
		if d.conn != conn {
			d.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(d.writeTimeout))
		if err != nil {
			d.log.WithField("error", err.Error()).Warn("Ping failed, marking inference connection as dead")
			d.conn = nil
			conn.Close()
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

func (d *websocketDetector) deadline(ctx context.Context, timeout time.Duration) time.Time {
	dl := time.Now().Add(timeout)
	if ctxDl, ok := ctx.Deadline(); ok && ctxDl.Before(dl) {
		return ctxDl
	}
	return dl
}

func (d *websocketDetector) Predict(ctx context.Context, image []byte, filename string) (entity.DetectionResult, error) {
	// one request in flight per connection
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		if err := d.reconnectLocked(); err != nil {
			return entity.DetectionResult{}, err
		}
	}
	conn := d.conn

	conn.SetWriteDeadline(d.deadline(ctx, d.writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, image); err != nil {
		d.dropLocked(conn)
		return entity.DetectionResult{}, fmt.Errorf("%w: send frame: %v", ErrInference, err)
	}

	conn.SetReadDeadline(d.deadline(ctx, d.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		d.dropLocked(conn)
		return entity.DetectionResult{}, fmt.Errorf("%w: read result: %v", ErrInference, err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result entity.DetectionResult
	if err := json.Unmarshal(message, &result); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	d.log.WithFields(logrus.Fields{
		"backend":    BackendWebsocket,
		"filename":   filename,
		"frame_size": len(image),
		"detections": len(result.Detections),
	}).Debug("Inference completed")

	return Normalize(result, d.opts), nil
}

func (d *websocketDetector) dropLocked(conn *websocket.Conn) {
	if d.conn == conn {
		d.conn = nil
	}
	conn.Close()
}

func (d *websocketDetector) Health(context.Context) error {
	if d.IsConnected() {
		return nil
	}
	return d.Reconnect()
}

func (d *websocketDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}
