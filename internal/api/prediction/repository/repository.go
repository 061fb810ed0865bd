package predictionRepository

import (
	"errors"

	"YoloPipeline/internal/entity"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// ErrRepositoryUnavailable is returned by NewClient when the API started without a database.
var ErrRepositoryUnavailable = errors.New("prediction log database unavailable")

type SQLExecutor interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	Rebind(query string) string
}

func New(db *sqlx.DB, log *logrus.Logger) Repository {
	return &repository{
		DB:  db,
		log: log,
	}
}

type repository struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

type Repository interface {
	NewClient(tx bool) (Client, error)
}

func (r *repository) NewClient(tx bool) (Client, error) {
	if r.DB == nil {
		return Client{}, ErrRepositoryUnavailable
	}

	var sqlExecutor SQLExecutor
	var commitFunc, rollbackFunc func() error

	sqlExecutor = r.DB

	if tx {
		txx, err := r.DB.Beginx()
		if err != nil {
			return Client{}, err
		}

		sqlExecutor = txx
		commitFunc = txx.Commit
		rollbackFunc = txx.Rollback
	} else {
		commitFunc = func() error { return nil }
		rollbackFunc = func() error { return nil }
	}

	return Client{
		Prediction: &predictionRepository{q: sqlExecutor, log: r.log},
		Commit:     commitFunc,
		Rollback:   rollbackFunc,
	}, nil
}

type Client struct {
	Prediction interface {
		LogPredictions(c context.Context, logs []entity.PredictionLog) error
		ListPredictions(c context.Context, limit int) ([]entity.PredictionLog, error)
	}

	Commit   func() error
	Rollback func() error
}

type predictionRepository struct {
	q   SQLExecutor
	log *logrus.Logger
}
