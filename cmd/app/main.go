package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"YoloPipeline/internal/config"
	"YoloPipeline/pkg/log"
	"YoloPipeline/pkg/metrics"
	"YoloPipeline/pkg/redis"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := log.NewLogger("api")
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	pipelineMetrics := metrics.New()

	var redisServer redis.IRedis
	if os.Getenv("REDIS_ADDRESS") != "" {
		redisServer = redis.New()
	} else {
		logger.Warn("REDIS_ADDRESS not set, recipe listing disabled")
	}

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithMetrics(pipelineMetrics),
		config.WithUtils(),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithS3Client(),
		config.WithDocStore(ctx),
		config.WithDetector(ctx),
		config.WithPublisher(),
		config.WithMiddleware(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		return server.Shutdown(10 * time.Second)
	})

	logger.Info("Server started successfully")

	if err := g.Wait(); err != nil {
		logger.Fatalf("Server stopped with error: %v", err)
	}
	logger.Info("Server stopped")
}
