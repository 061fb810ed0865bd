package entity

// DefaultLabel replaces a detection label the model did not provide.
const DefaultLabel = "object"

type DetectionItem struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

// DetectionResult is the payload published to the work queue.
type DetectionResult struct {
	Detections []DetectionItem `json:"detections"`
	Meta       map[string]any  `json:"meta"`
}

func (r DetectionResult) Labels() []string {
	labels := make([]string, 0, len(r.Detections))
	for _, d := range r.Detections {
		label := d.Label
		if label == "" {
			label = DefaultLabel
		}
		labels = append(labels, label)
	}
	return labels
}
