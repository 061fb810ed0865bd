package predictionRepository

import (
	"context"
	"database/sql"
	"time"

	"YoloPipeline/internal/entity"
	contextPkg "YoloPipeline/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type PredictionDB struct {
	ID         sql.NullInt64   `db:"id"`
	Filename   sql.NullString  `db:"filename"`
	Label      sql.NullString  `db:"label"`
	Confidence sql.NullFloat64 `db:"confidence"`
	UserID     sql.NullString  `db:"user_id"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (p PredictionDB) toEntity() entity.PredictionLog {
	return entity.PredictionLog{
		ID:         p.ID.Int64,
		Filename:   p.Filename.String,
		Label:      p.Label.String,
		Confidence: p.Confidence.Float64,
		UserID:     p.UserID.String,
		CreatedAt:  p.CreatedAt,
	}
}

// LogPredictions inserts one row per detected object. Run it on a transactional client
// so a detection result is either fully logged or not at all.
func (r *predictionRepository) LogPredictions(c context.Context, logs []entity.PredictionLog) error {
	requestID := contextPkg.GetRequestID(c)

	for _, p := range logs {
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		argsKV := map[string]interface{}{
			"filename":   p.Filename,
			"label":      p.Label,
			"confidence": p.Confidence,
			"user_id":    sql.NullString{String: p.UserID, Valid: p.UserID != ""},
			"created_at": createdAt,
		}

		query, args, err := sqlx.Named(queryInsertPrediction, argsKV)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Error("Failed to build SQL query for LogPredictions")
			return err
		}
		query = r.q.Rebind(query)

		if _, err := r.q.ExecContext(c, query, args...); err != nil {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"filename":   p.Filename,
				"label":      p.Label,
				"error":      err.Error(),
			}).Error("Database error when logging prediction")
			return err
		}
	}

	return nil
}

func (r *predictionRepository) ListPredictions(c context.Context, limit int) ([]entity.PredictionLog, error) {
	requestID := contextPkg.GetRequestID(c)

	argsKV := map[string]interface{}{
		"limit": limit,
	}

	query, args, err := sqlx.Named(queryListPredictions, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListPredictions named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []PredictionDB
	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing predictions")
		return nil, err
	}

	predictions := make([]entity.PredictionLog, 0, len(rows))
	for _, row := range rows {
		predictions = append(predictions, row.toEntity())
	}

	return predictions, nil
}
