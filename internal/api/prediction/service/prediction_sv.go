package predictionService

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"YoloPipeline/internal/api/prediction"
	predictionRepository "YoloPipeline/internal/api/prediction/repository"
	"YoloPipeline/internal/entity"
	contextPkg "YoloPipeline/pkg/context"
	"YoloPipeline/pkg/docstore"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Predict runs detection and fans the result out to the log, the document store, the
// image archive and the work queue. Only detection failures reach the caller; the queue
// outcome is only logged.
func (s *predictionService) Predict(ctx context.Context, in prediction.PredictInput) (prediction.PredictResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(in.Image) == 0 {
		return prediction.PredictResponse{}, prediction.ErrEmptyImage
	}

	result, err := s.detector.Predict(ctx, in.Image, in.Filename)
	if err != nil {
		s.metrics.ObservePrediction(statusError, 0)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"filename":   in.Filename,
			"error":      err.Error(),
		}).Error("Inference failed")
		return prediction.PredictResponse{}, prediction.ErrInferenceFailed
	}

	imageKey, imageURL := s.archiveImage(ctx, in)

	var (
		documentID string
		published  bool
		wg         sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		s.logPredictions(ctx, in, result)
	}()
	go func() {
		defer wg.Done()
		documentID = s.storeDocument(ctx, in, result, imageKey)
	}()
	go func() {
		defer wg.Done()
		published = s.publish(ctx, result)
	}()
	wg.Wait()

	s.metrics.ObservePrediction(statusOK, len(result.Detections))

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"filename":    in.Filename,
		"detections":  len(result.Detections),
		"document_id": documentID,
		"published":   published,
	}).Info("Prediction completed")

	return prediction.PredictResponse{
		Detections: result.Detections,
		Meta:       result.Meta,
		DocumentID: documentID,
		ImageURL:   imageURL,
	}, nil
}

func (s *predictionService) logPredictions(ctx context.Context, in prediction.PredictInput, result entity.DetectionResult) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(result.Detections) == 0 {
		return
	}

	now := time.Now().UTC()
	logs := make([]entity.PredictionLog, 0, len(result.Detections))
	for _, d := range result.Detections {
		logs = append(logs, entity.PredictionLog{
			Filename:   in.Filename,
			Label:      d.Label,
			Confidence: d.Confidence,
			UserID:     in.UserID,
			CreatedAt:  now,
		})
	}

	repo, err := s.predictionRepository.NewClient(true)
	if err != nil {
		if errors.Is(err, predictionRepository.ErrRepositoryUnavailable) {
			s.log.WithField("request_id", requestID).Debug("Prediction log unavailable, skipping")
			return
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to begin prediction log transaction")
		return
	}

	if err := repo.Prediction.LogPredictions(ctx, logs); err != nil {
		if rbErr := repo.Rollback(); rbErr != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      rbErr.Error(),
			}).Error("Failed to rollback prediction log transaction")
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to log predictions")
		return
	}

	if err := repo.Commit(); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to commit prediction log transaction")
	}
}

func (s *predictionService) storeDocument(ctx context.Context, in prediction.PredictInput, result entity.DetectionResult, imageKey string) string {
	requestID := contextPkg.GetRequestID(ctx)

	doc := map[string]any{
		"filename":   in.Filename,
		"user_id":    in.UserID,
		"detections": detectionsToDocument(result.Detections),
		"meta":       result.Meta,
	}
	if imageKey != "" {
		doc["image_key"] = imageKey
	}

	id, err := s.docStore.Create(ctx, doc)
	if err != nil {
		if errors.Is(err, docstore.ErrUnavailable) {
			s.log.WithField("request_id", requestID).Debug("Document store unavailable, skipping")
			return ""
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to store detection document")
		return ""
	}

	return id
}

func (s *predictionService) archiveImage(ctx context.Context, in prediction.PredictInput) (string, string) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.s3 == nil {
		return "", ""
	}

	contentType := in.ContentType
	if sniffed, err := s.utils.DetectImageType(in.Image); err == nil {
		contentType = sniffed
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to generate ULID for image key")
		return "", ""
	}
	key := fmt.Sprintf("predictions/%s%s", id, extensionFor(contentType))

	location, err := s.s3.UploadImage(ctx, key, in.Image, contentType)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Warn("Failed to archive image")
		return "", ""
	}

	url, err := s.s3.PresignUrl(location)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"key":        key,
			"error":      err.Error(),
		}).Debug("Failed to presign image URL, returning location")
		url = location
	}

	return key, url
}

func (s *predictionService) publish(ctx context.Context, result entity.DetectionResult) bool {
	if s.publisher == nil {
		return false
	}
	return s.publisher.PublishBestEffort(ctx, result, "")
}

func (s *predictionService) ListPredictions(ctx context.Context, limit int) ([]entity.PredictionLog, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.predictionRepository.NewClient(false)
	if err != nil {
		if errors.Is(err, predictionRepository.ErrRepositoryUnavailable) {
			return []entity.PredictionLog{}, nil
		}
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return nil, prediction.ErrInternalServerError
	}

	predictions, err := repo.Prediction.ListPredictions(ctx, limit)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"limit":      limit,
			"error":      err.Error(),
		}).Error("Failed to list predictions")
		return nil, prediction.ErrInternalServerError
	}

	return predictions, nil
}

func (s *predictionService) ListOutputs(ctx context.Context, limit int) ([]entity.StoredOutput, error) {
	outputs, err := s.docStore.List(ctx, limit)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Error("Failed to list outputs")
		return nil, prediction.ErrInternalServerError
	}
	return outputs, nil
}

func (s *predictionService) UpdateOutput(ctx context.Context, req prediction.UpdateOutputRequest) error {
	if len(req.Fields) == 0 {
		return prediction.ErrInvalidOutputUpdate
	}

	if err := s.docStore.Update(ctx, req.ID, req.Fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return prediction.ErrOutputNotFound
		}
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"id":         req.ID,
			"error":      err.Error(),
		}).Error("Failed to update output")
		return prediction.ErrInternalServerError
	}

	return nil
}

// DeleteOutput removes the document and, when one was archived, its image.
func (s *predictionService) DeleteOutput(ctx context.Context, id string) error {
	requestID := contextPkg.GetRequestID(ctx)

	var imageKey string
	if s.s3 != nil && s.docStore.Available() {
		if out, err := s.docStore.Get(ctx, id); err == nil {
			imageKey, _ = out.Data["image_key"].(string)
		}
	}

	if err := s.docStore.Delete(ctx, id); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"id":         id,
			"error":      err.Error(),
		}).Error("Failed to delete output")
		return prediction.ErrInternalServerError
	}

	if imageKey != "" {
		if err := s.s3.DeleteFile(imageKey); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"key":        imageKey,
				"error":      err.Error(),
			}).Warn("Failed to delete archived image")
		}
	}

	return nil
}

func (s *predictionService) ListRecipes(ctx context.Context, limit int) ([]entity.Recipe, error) {
	if s.recipes == nil {
		return nil, prediction.ErrRecipeCacheUnavailable
	}

	recipes, err := s.recipes.ListRecipes(ctx, int64(limit))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"error":      err.Error(),
		}).Warn("Failed to list recipes")
		return nil, prediction.ErrRecipeCacheUnavailable
	}

	return recipes, nil
}

func detectionsToDocument(detections []entity.DetectionItem) []map[string]any {
	docs := make([]map[string]any, 0, len(detections))
	for _, d := range detections {
		docs = append(docs, map[string]any{
			"label":      d.Label,
			"confidence": d.Confidence,
			"box":        d.Box,
		})
	}
	return docs
}

func extensionFor(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}
