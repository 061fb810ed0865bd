package detector

import (
	"context"
	"fmt"
	"strings"

	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/gemini"
	"YoloPipeline/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	geminiMaxDim  = 1024
	geminiQuality = 85

	detectionPrompt = `Detect every distinct object in this image.
Reply with JSON only, in exactly this shape:
{"detections":[{"label":"<lowercase class name>","confidence":<0..1>,"box_2d":[ymin,xmin,ymax,xmax]}]}
Coordinates are normalized to 0-1000. Use COCO class names where possible. Return {"detections":[]} when nothing is found.`
)

type geminiReply struct {
	Detections []struct {
		Label      string    `json:"label"`
		Confidence float64   `json:"confidence"`
		Box2D      []float64 `json:"box_2d"`
	} `json:"detections"`
}

// geminiDetector asks a multimodal model for boxes and converts them to pixel xyxy on the original image.
type geminiDetector struct {
	client gemini.IGemini
	utils  utils.IUtils
	opts   Options
	log    *logrus.Logger
}

func NewGeminiDetector(client gemini.IGemini, u utils.IUtils, opts Options, log *logrus.Logger) IDetector {
	return &geminiDetector{
		client: client,
		utils:  u,
		opts:   opts,
		log:    log,
	}
}

func (d *geminiDetector) Predict(ctx context.Context, image []byte, filename string) (entity.DetectionResult, error) {
	info, err := d.utils.DecodeImageInfo(image)
	if err != nil {
		return entity.DetectionResult{}, err
	}

	small, err := d.utils.OptimizeImage(image, geminiMaxDim, geminiQuality)
	if err != nil {
		return entity.DetectionResult{}, err
	}

	text, err := d.client.AnalyzeImage(ctx, small, "jpeg", detectionPrompt)
	if err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	var reply geminiReply
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &reply); err != nil {
		d.log.WithFields(logrus.Fields{
			"filename": filename,
			"reply":    text,
		}).Warn("Gemini reply is not valid detection JSON")
		return entity.DetectionResult{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	w, h := float64(info.Width), float64(info.Height)
	result := entity.DetectionResult{Detections: []entity.DetectionItem{}, Meta: d.opts.Meta()}
	for _, det := range reply.Detections {
		if det.Confidence < d.opts.Conf || len(det.Box2D) != 4 {
			continue
		}
		ymin, xmin, ymax, xmax := det.Box2D[0], det.Box2D[1], det.Box2D[2], det.Box2D[3]
		result.Detections = append(result.Detections, entity.DetectionItem{
			Label:      strings.ToLower(det.Label),
			Confidence: det.Confidence,
			Box:        []float64{xmin / 1000 * w, ymin / 1000 * h, xmax / 1000 * w, ymax / 1000 * h},
		})
	}
	result.Meta["orig_shape"] = []int{info.Height, info.Width}

	d.log.WithFields(logrus.Fields{
		"backend":    BackendGemini,
		"filename":   filename,
		"detections": len(result.Detections),
	}).Debug("Inference completed")

	return Normalize(result, d.opts), nil
}

func (d *geminiDetector) Health(context.Context) error {
	return nil
}

func (d *geminiDetector) Close() error {
	return d.client.Close()
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
