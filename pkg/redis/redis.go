package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"YoloPipeline/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRecipeKey  = "recipes:latest"
	DefaultMaxRecipes = 100
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IRedis interface {
	PushRecipe(ctx context.Context, recipe entity.Recipe) error
	ListRecipes(ctx context.Context, limit int64) ([]entity.Recipe, error)
	Ping(ctx context.Context) error
	Close() error
}

type redisClient struct {
	client     *redis.Client
	key        string
	maxEntries int64
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client)
}

// NewWithClient wraps an existing client. REDIS_RECIPE_KEY and REDIS_RECIPE_MAX override the list name and length.
func NewWithClient(client *redis.Client) IRedis {
	r := &redisClient{
		client:     client,
		key:        DefaultRecipeKey,
		maxEntries: DefaultMaxRecipes,
	}
	if key := os.Getenv("REDIS_RECIPE_KEY"); key != "" {
		r.key = key
	}
	if n, err := strconv.ParseInt(os.Getenv("REDIS_RECIPE_MAX"), 10, 64); err == nil && n > 0 {
		r.maxEntries = n
	}
	return r
}

// PushRecipe prepends the recipe and trims the list so only the newest entries survive.
func (r *redisClient) PushRecipe(ctx context.Context, recipe entity.Recipe) error {
	data, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("encode recipe: %w", err)
	}

	logrus.Debug(fmt.Sprintf("Caching recipe %q under key %s", recipe.Title, r.key))
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Error(fmt.Sprintf("Error caching recipe under key %s: %v", r.key, err))
		return err
	}
	return nil
}

// ListRecipes returns up to limit cached recipes, newest first. Entries that no longer decode are skipped.
func (r *redisClient) ListRecipes(ctx context.Context, limit int64) ([]entity.Recipe, error) {
	if limit <= 0 || limit > r.maxEntries {
		limit = r.maxEntries
	}

	logrus.Debug(fmt.Sprintf("Listing %d recipes from key %s", limit, r.key))
	raw, err := r.client.LRange(ctx, r.key, 0, limit-1).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error listing recipes from key %s: %v", r.key, err))
		return nil, err
	}

	recipes := make([]entity.Recipe, 0, len(raw))
	for _, item := range raw {
		var recipe entity.Recipe
		if err := json.Unmarshal([]byte(item), &recipe); err != nil {
			logrus.Warn(fmt.Sprintf("Skipping undecodable recipe entry: %v", err))
			continue
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
