package prediction

import "YoloPipeline/internal/entity"

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type ListQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
}

// PredictInput is one uploaded image on its way through the service.
type PredictInput struct {
	Image       []byte
	Filename    string
	ContentType string
	UserID      string
}

type PredictResponse struct {
	Detections []entity.DetectionItem `json:"detections"`
	Meta       map[string]any         `json:"meta"`
	DocumentID string                 `json:"document_id,omitempty"`
	ImageURL   string                 `json:"image_url,omitempty"`
}

type PredictionResponse struct {
	ID         int64   `json:"id"`
	Filename   string  `json:"filename"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	UserID     string  `json:"user_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

type PredictionListResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
	Count       int                  `json:"count"`
}

type OutputResponse struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type OutputListResponse struct {
	Outputs []OutputResponse `json:"outputs"`
	Count   int              `json:"count"`
}

type UpdateOutputRequest struct {
	ID     string         `json:"-" validate:"required"`
	Fields map[string]any `json:"-" validate:"required,min=1"`
}

type RecipeListResponse struct {
	Recipes []entity.Recipe `json:"recipes"`
	Count   int             `json:"count"`
}

// Resolve returns the effective page size.
func (q ListQuery) Resolve() int {
	if q.Limit <= 0 {
		return DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		return MaxListLimit
	}
	return q.Limit
}
