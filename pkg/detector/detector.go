package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/gemini"
	"YoloPipeline/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	BackendHTTP      = "http"
	BackendGemini    = "gemini"
	BackendWebsocket = "websocket"

	DefaultInferenceURL = "http://localhost:8000"
)

var (
	ErrInference    = errors.New("inference failed")
	ErrBadResponse  = errors.New("inference returned an unreadable result")
	ErrNotConnected = errors.New("inference service not connected")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IDetector runs object detection on one encoded image.
type IDetector interface {
	Predict(ctx context.Context, image []byte, filename string) (entity.DetectionResult, error)
	Health(ctx context.Context) error
	Close() error
}

// Options are the inference parameters echoed back in every result's meta.
type Options struct {
	ImgSz int
	Conf  float64
	IoU   float64
}

func DefaultOptions() Options {
	return Options{ImgSz: 640, Conf: 0.25, IoU: 0.45}
}

func OptionsFromEnv() Options {
	opts := DefaultOptions()
	if n, err := strconv.Atoi(os.Getenv("DETECTOR_IMGSZ")); err == nil && n > 0 {
		opts.ImgSz = n
	}
	if f, err := strconv.ParseFloat(os.Getenv("DETECTOR_CONF"), 64); err == nil && f >= 0 && f <= 1 {
		opts.Conf = f
	}
	if f, err := strconv.ParseFloat(os.Getenv("DETECTOR_IOU"), 64); err == nil && f >= 0 && f <= 1 {
		opts.IoU = f
	}
	return opts
}

func (o Options) Meta() map[string]any {
	return map[string]any{
		"imgsz": o.ImgSz,
		"conf":  o.Conf,
		"iou":   o.IoU,
	}
}

// Normalize rounds confidence to 4 decimals and box coordinates to 2, fills empty labels
// and makes sure meta carries the inference parameters.
func Normalize(result entity.DetectionResult, opts Options) entity.DetectionResult {
	out := entity.DetectionResult{
		Detections: make([]entity.DetectionItem, 0, len(result.Detections)),
		Meta:       make(map[string]any, len(result.Meta)+3),
	}

	for _, d := range result.Detections {
		item := entity.DetectionItem{
			Label:      strings.TrimSpace(d.Label),
			Confidence: round(d.Confidence, 4),
			Box:        make([]float64, 0, len(d.Box)),
		}
		if item.Label == "" {
			item.Label = entity.DefaultLabel
		}
		for _, v := range d.Box {
			item.Box = append(item.Box, round(v, 2))
		}
		out.Detections = append(out.Detections, item)
	}

	for k, v := range result.Meta {
		out.Meta[k] = v
	}
	for k, v := range opts.Meta() {
		if _, ok := out.Meta[k]; !ok {
			out.Meta[k] = v
		}
	}

	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// New builds the backend named by DETECTOR_BACKEND.
func New(ctx context.Context, log *logrus.Logger, u utils.IUtils) (IDetector, error) {
	opts := OptionsFromEnv()
	backend := strings.ToLower(os.Getenv("DETECTOR_BACKEND"))

	switch backend {
	case "", BackendHTTP:
		url := os.Getenv("INFERENCE_URL")
		if url == "" {
			url = DefaultInferenceURL
		}
		return NewHTTPDetector(url, opts, log, nil), nil
	case BackendGemini:
		client, err := gemini.NewGeminiClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gemini backend: %w", err)
		}
		return NewGeminiDetector(client, u, opts, log), nil
	case BackendWebsocket:
		url := os.Getenv("INFERENCE_WS_URL")
		if url == "" {
			return nil, errors.New("INFERENCE_WS_URL is required for the websocket backend")
		}
		return NewWebsocketDetector(url, opts, log), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", backend)
	}
}
