package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"YoloPipeline/internal/entity"
	"YoloPipeline/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	recipes []entity.Recipe
	err     error
}

func (c *fakeCache) PushRecipe(_ context.Context, recipe entity.Recipe) error {
	if c.err != nil {
		return c.err
	}
	c.recipes = append(c.recipes, recipe)
	return nil
}

func newTestHandler(cache RecipeCache) (*handler, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return &handler{
		log:   logger,
		cache: cache,
		now:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}, hook
}

func TestHandler_CachesRecipe(t *testing.T) {
	cache := &fakeCache{}
	h, hook := newTestHandler(cache)

	err := h.handle(context.Background(), amqp.Delivery{
		MessageId: "msg-1",
		Body:      []byte(`{"detections":[{"label":"apple"},{"label":"banana"}],"meta":{"imgsz":640}}`),
	})
	require.NoError(t, err)

	require.Len(t, cache.recipes, 1)
	recipe := cache.recipes[0]
	assert.Equal(t, "Quick Apple Dish", recipe.Title)
	assert.Equal(t, "msg-1", recipe.MessageID)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), recipe.ProcessedAt)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "Quick Apple Dish", hook.LastEntry().Data["title"])
}

func TestHandler_MalformedBodyReturnsSerializationError(t *testing.T) {
	cache := &fakeCache{}
	h, _ := newTestHandler(cache)

	err := h.handle(context.Background(), amqp.Delivery{Body: []byte(`{broken`)})
	assert.True(t, errors.Is(err, rabbitmq.ErrSerialization))
	assert.Empty(t, cache.recipes)
}

func TestHandler_CacheFailureIsNotAnError(t *testing.T) {
	h, hook := newTestHandler(&fakeCache{err: errors.New("redis down")})

	err := h.handle(context.Background(), amqp.Delivery{Body: []byte(`{"detections":[]}`)})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestNewHandler_WorksWithoutCache(t *testing.T) {
	logger, _ := test.NewNullLogger()
	handle := NewHandler(logger, nil)

	assert.NoError(t, handle(context.Background(), amqp.Delivery{Body: []byte(`{"detections":[]}`)}))
}
