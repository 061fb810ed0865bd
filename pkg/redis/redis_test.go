package redis

import (
	"context"
	"fmt"
	"testing"

	"YoloPipeline/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (IRedis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client), srv
}

func TestPushRecipe_NewestFirst(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PushRecipe(ctx, entity.Recipe{Title: "Quick Apple Dish", Detected: true}))
	require.NoError(t, cache.PushRecipe(ctx, entity.Recipe{Title: "Quick Banana Dish", Detected: true}))

	recipes, err := cache.ListRecipes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recipes, 2)
	assert.Equal(t, "Quick Banana Dish", recipes[0].Title)
	assert.Equal(t, "Quick Apple Dish", recipes[1].Title)
}

func TestPushRecipe_TrimsToMaxEntries(t *testing.T) {
	t.Setenv("REDIS_RECIPE_MAX", "3")
	cache, srv := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.PushRecipe(ctx, entity.Recipe{Title: fmt.Sprintf("recipe-%d", i)}))
	}

	items, err := srv.List(DefaultRecipeKey)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	recipes, err := cache.ListRecipes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recipes, 3)
	assert.Equal(t, "recipe-4", recipes[0].Title)
}

func TestListRecipes_SkipsUndecodableEntries(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.PushRecipe(ctx, entity.Recipe{Title: "ok"}))
	_, err := srv.Lpush(DefaultRecipeKey, "not-json")
	require.NoError(t, err)

	recipes, err := cache.ListRecipes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "ok", recipes[0].Title)
}

func TestPushRecipe_FailsWhenServerIsDown(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer client.Close()
	cache := NewWithClient(client)
	srv.Close()

	assert.Error(t, cache.PushRecipe(context.Background(), entity.Recipe{Title: "lost"}))
	assert.Error(t, cache.Ping(context.Background()))
}
