package worker

import (
	"context"
	"time"

	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type RecipeCache interface {
	PushRecipe(ctx context.Context, recipe entity.Recipe) error
}

type handler struct {
	log   *logrus.Logger
	cache RecipeCache
	now   func() time.Time
}

// NewHandler builds the consumer callback: parse, transform, log, cache. cache may be nil.
func NewHandler(log *logrus.Logger, cache RecipeCache) rabbitmq.Handler {
	h := &handler{
		log:   log,
		cache: cache,
		now:   time.Now,
	}
	return h.handle
}

func (h *handler) handle(ctx context.Context, d amqp.Delivery) error {
	result, err := ParsePayload(d.Body)
	if err != nil {
		return err
	}

	recipe := Transform(result)
	recipe.MessageID = d.MessageId
	recipe.ProcessedAt = h.now().UTC()

	h.log.WithFields(logrus.Fields{
		"message_id":  d.MessageId,
		"detections":  len(result.Detections),
		"labels":      recipe.Labels,
		"title":       recipe.Title,
		"ingredients": recipe.Ingredients,
		"summary":     recipe.Summary,
	}).Info("Post-processed detection result")

	if h.cache != nil {
		if err := h.cache.PushRecipe(ctx, recipe); err != nil {
			h.log.WithFields(logrus.Fields{
				"message_id": d.MessageId,
				"error":      err.Error(),
			}).Warn("Failed to cache recipe")
		}
	}

	return nil
}
