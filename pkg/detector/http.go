package detector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"YoloPipeline/internal/entity"

	"github.com/sirupsen/logrus"
)

// httpDetector posts the image to a YOLO inference service as multipart field "file".
type httpDetector struct {
	baseURL string
	client  *http.Client
	opts    Options
	log     *logrus.Logger
}

func NewHTTPDetector(baseURL string, opts Options, log *logrus.Logger, client *http.Client) IDetector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpDetector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		opts:    opts,
		log:     log,
	}
}

func (d *httpDetector) Predict(ctx context.Context, image []byte, filename string) (entity.DetectionResult, error) {
	if filename == "" {
		filename = "image.jpg"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("copy image data: %w", err)
	}

	fields := map[string]string{
		"imgsz": strconv.Itoa(d.opts.ImgSz),
		"conf":  strconv.FormatFloat(d.opts.Conf, 'f', -1, 64),
		"iou":   strconv.FormatFloat(d.opts.IoU, 'f', -1, 64),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return entity.DetectionResult{}, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/predict", body)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entity.DetectionResult{}, fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result entity.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	d.log.WithFields(logrus.Fields{
		"backend":    BackendHTTP,
		"filename":   filename,
		"detections": len(result.Detections),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Inference completed")

	return Normalize(result, d.opts), nil
}

func (d *httpDetector) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: inference service unhealthy: %d", ErrInference, resp.StatusCode)
	}
	return nil
}

func (d *httpDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
