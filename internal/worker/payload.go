package worker

import (
	"fmt"

	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/rabbitmq"
)

// ParsePayload decodes a queue message into a DetectionResult. Only a body that is not a JSON object is an error;
// every field with the wrong shape falls back to its empty value so the transform still runs.
func ParsePayload(body []byte) (entity.DetectionResult, error) {
	var raw any
	if err := rabbitmq.Decode(body, &raw); err != nil {
		return entity.DetectionResult{}, err
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return entity.DetectionResult{}, fmt.Errorf("%w: payload is %T, want a JSON object", rabbitmq.ErrSerialization, raw)
	}

	result := entity.DetectionResult{
		Detections: []entity.DetectionItem{},
		Meta:       map[string]any{},
	}

	if meta, ok := doc["meta"].(map[string]any); ok {
		result.Meta = meta
	}

	items, _ := doc["detections"].([]any)
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		result.Detections = append(result.Detections, parseItem(obj))
	}

	return result, nil
}

func parseItem(obj map[string]any) entity.DetectionItem {
	item := entity.DetectionItem{Label: entity.DefaultLabel}

	if label, ok := obj["label"].(string); ok {
		item.Label = label
	}
	if conf, ok := obj["confidence"].(float64); ok {
		item.Confidence = conf
	}
	if box, ok := obj["box"].([]any); ok {
		for _, v := range box {
			if f, ok := v.(float64); ok {
				item.Box = append(item.Box, f)
			}
		}
	}

	return item
}
