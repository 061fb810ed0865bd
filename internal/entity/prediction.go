package entity

import "time"

// PredictionLog is one detected object as written to the relational log.
type PredictionLog struct {
	ID         int64     `db:"id"`
	Filename   string    `db:"filename"`
	Label      string    `db:"label"`
	Confidence float64   `db:"confidence"`
	UserID     string    `db:"user_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// StoredOutput is one detection result document kept in the document store.
type StoredOutput struct {
	ID   string
	Data map[string]any
}
