package predictionHandler

import (
	"fmt"
	"time"

	"YoloPipeline/internal/api/prediction"
	"YoloPipeline/internal/entity"
	"YoloPipeline/internal/middleware"
	contextPkg "YoloPipeline/pkg/context"
	jwtPkg "YoloPipeline/pkg/jwt"
	"YoloPipeline/pkg/log"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// handleWebSocket runs one prediction per binary frame and writes the result back as JSON.
func (h *PredictionHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	principal, _ := c.Locals(jwtPkg.PrincipalKey).(entity.Principal)

	fields := log.Fields{
		"request_id": requestID,
		"uid":        principal.UID,
	}
	h.log.WithFields(fields).Info("Prediction stream client connected")
	defer h.log.WithFields(fields).Info("Prediction stream client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.WithFields(fields).Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for frame := 1; ; frame++ {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(fields).Errorf("Prediction stream error: %v", err)
			}
			return
		}

		if messageType != websocket.BinaryMessage {
			h.log.WithFields(fields).Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), predictTimeout)
		ctx = contextPkg.WithPrincipal(contextPkg.WithRequestID(ctx, requestID), principal)

		result, err := h.predictionService.Predict(ctx, prediction.PredictInput{
			Image:    message,
			Filename: fmt.Sprintf("stream-%s-%d.jpg", requestID, frame),
			UserID:   principal.UID,
		})
		cancel()

		var reply any = result
		if err != nil {
			h.log.WithFields(fields).Warnf("Error processing frame %d: %v", frame, err)
			reply = map[string]string{"error": err.Error()}
		}

		if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting write deadline: %v", err)
			return
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.WithFields(fields).Errorf("Error writing JSON response: %v", err)
			return
		}
	}
}
