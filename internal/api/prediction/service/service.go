package predictionService

import (
	"YoloPipeline/internal/api/prediction"
	predictionRepository "YoloPipeline/internal/api/prediction/repository"
	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/detector"
	"YoloPipeline/pkg/docstore"
	"YoloPipeline/pkg/metrics"
	"YoloPipeline/pkg/rabbitmq"
	"YoloPipeline/pkg/redis"
	"YoloPipeline/pkg/s3"
	"YoloPipeline/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IPredictionService interface {
	Predict(ctx context.Context, in prediction.PredictInput) (prediction.PredictResponse, error)
	ListPredictions(ctx context.Context, limit int) ([]entity.PredictionLog, error)
	ListOutputs(ctx context.Context, limit int) ([]entity.StoredOutput, error)
	UpdateOutput(ctx context.Context, req prediction.UpdateOutputRequest) error
	DeleteOutput(ctx context.Context, id string) error
	ListRecipes(ctx context.Context, limit int) ([]entity.Recipe, error)
}

type predictionService struct {
	log                  *logrus.Logger
	predictionRepository predictionRepository.Repository
	detector             detector.IDetector
	docStore             docstore.IDocStore
	publisher            rabbitmq.IPublisher
	s3                   s3.ItfS3
	recipes              redis.IRedis
	metrics              *metrics.Metrics
	utils                utils.IUtils
}

// New builds the prediction service. s3, recipes and metrics may be nil; the document
// store should be docstore.Unavailable() rather than nil when Firestore is not configured.
func New(
	log *logrus.Logger,
	pr predictionRepository.Repository,
	d detector.IDetector,
	ds docstore.IDocStore,
	publisher rabbitmq.IPublisher,
	s3 s3.ItfS3,
	recipes redis.IRedis,
	m *metrics.Metrics,
	utils utils.IUtils,
) IPredictionService {
	if ds == nil {
		ds = docstore.Unavailable()
	}

	return &predictionService{
		log:                  log,
		predictionRepository: pr,
		detector:             d,
		docStore:             ds,
		publisher:            publisher,
		s3:                   s3,
		recipes:              recipes,
		metrics:              m,
		utils:                utils,
	}
}
