package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"YoloPipeline/internal/worker"
	"YoloPipeline/pkg/log"
	"YoloPipeline/pkg/metrics"
	"YoloPipeline/pkg/rabbitmq"
	"YoloPipeline/pkg/redis"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const defaultMetricsAddr = ":9091"

func main() {
	logger := log.NewLogger("worker")
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded, using process environment: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.New()

	var cache worker.RecipeCache
	if os.Getenv("REDIS_ADDRESS") != "" {
		recipes := redis.New()
		defer recipes.Close()
		cache = recipes
	} else {
		logger.Warn("REDIS_ADDRESS not set, recipes will only be logged")
	}

	cfg := rabbitmq.ConfigFromEnv()
	consumer := rabbitmq.NewConsumer(cfg, worker.NewHandler(logger, cache), logger,
		rabbitmq.WithConsumerMetrics(workerMetrics))

	g, gctx := errgroup.WithContext(ctx)

	metricsAddr, ok := os.LookupEnv("METRICS_ADDR")
	if !ok {
		metricsAddr = defaultMetricsAddr
	}
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           workerMetrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Infof("Serving worker metrics on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Worker stopped with error: %v", err)
	}
	logger.Info("Worker stopped")
}
