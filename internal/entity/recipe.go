package entity

import "time"

type Recipe struct {
	Detected     bool           `json:"detected"`
	Title        string         `json:"recipe_title"`
	Ingredients  []string       `json:"ingredients"`
	Steps        []string       `json:"steps"`
	Summary      string         `json:"summary"`
	Labels       []string       `json:"labels"`
	OriginalMeta map[string]any `json:"original_meta"`
	MessageID    string         `json:"message_id,omitempty"`
	ProcessedAt  time.Time      `json:"processed_at,omitempty"`
}
