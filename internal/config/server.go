package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"YoloPipeline/database/postgres"
	predictionHandler "YoloPipeline/internal/api/prediction/handler"
	predictionRepository "YoloPipeline/internal/api/prediction/repository"
	predictionService "YoloPipeline/internal/api/prediction/service"
	"YoloPipeline/internal/middleware"
	"YoloPipeline/pkg/detector"
	"YoloPipeline/pkg/docstore"
	jwtPkg "YoloPipeline/pkg/jwt"
	"YoloPipeline/pkg/metrics"
	"YoloPipeline/pkg/rabbitmq"
	"YoloPipeline/pkg/redis"
	"YoloPipeline/pkg/s3"
	"YoloPipeline/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	docStore    docstore.IDocStore
	detector    detector.IDetector
	publisher   rabbitmq.IPublisher
	metrics     *metrics.Metrics
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.docStore == nil {
		server.docStore = docstore.Unavailable()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects to PostgreSQL and migrates the schema. The API keeps running
// without the relational log when the database is unreachable.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("Database unavailable, prediction log disabled: %v", err)
			}
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		s.db = db
		return nil
	}
}

func WithDB(db *sqlx.DB) ServerOption {
	return func(s *Server) error {
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Warnf("S3 client unavailable, images will not be archived: %v", err)
			}
			return nil
		}
		s.s3Client = client
		return nil
	}
}

// WithDocStore opens Firestore, falling back to docstore.Unavailable() so the request path never depends on it.
func WithDocStore(ctx context.Context) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before document store")
		}

		store, err := docstore.New(ctx, docstore.ConfigFromEnv(), s.log)
		if err != nil {
			s.log.Warnf("Document store unavailable, outputs will not be stored: %v", err)
			s.docStore = docstore.Unavailable()
			return nil
		}
		s.docStore = store
		return nil
	}
}

func WithDocStoreClient(store docstore.IDocStore) ServerOption {
	return func(s *Server) error {
		s.docStore = store
		return nil
	}
}

func WithDetector(ctx context.Context) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before detector")
		}
		if s.utils == nil {
			s.utils = utils.New()
		}

		d, err := detector.New(ctx, s.log, s.utils)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		s.detector = d
		return nil
	}
}

func WithDetectorClient(d detector.IDetector) ServerOption {
	return func(s *Server) error {
		s.detector = d
		return nil
	}
}

func WithPublisher() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before publisher")
		}
		s.publisher = rabbitmq.NewPublisher(rabbitmq.ConfigFromEnv(), s.log,
			rabbitmq.WithPublisherMetrics(s.metrics))
		return nil
	}
}

func WithPublisherClient(p rabbitmq.IPublisher) ServerOption {
	return func(s *Server) error {
		s.publisher = p
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithMiddleware needs JWT_ACCESS_TOKEN_SECRET. Without it every protected route answers 401.
func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}

		verifier, err := jwtPkg.NewVerifierFromEnv(s.log)
		if err != nil {
			s.log.Warnf("Token verifier not configured, protected routes will reject every request: %v", err)
		}
		s.middleware = middleware.New(s.log, verifier)
		return nil
	}
}

func WithVerifier(verifier jwtPkg.IVerifier) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, verifier)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	// Prediction Domain
	predictionRepo := predictionRepository.New(s.db, s.log)
	predictionServices := predictionService.New(s.log, predictionRepo, s.detector, s.docStore,
		s.publisher, s.s3Client, s.redisServer, s.metrics, s.utils)
	predictionHandlers := predictionHandler.New(s.log, s.validator, s.middleware, predictionServices, s.utils)

	s.setupHealthCheck()
	s.setupMetrics()
	s.handlers = append(s.handlers, predictionHandlers)

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) Run() error {
	port := getEnv("APP_PORT", "3000")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown drains in-flight requests and closes every client the server owns.
func (s *Server) Shutdown(timeout time.Duration) error {
	var errs []error

	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if s.detector != nil {
		if err := s.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("detector: %w", err))
		}
	}
	if s.docStore != nil {
		if err := s.docStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("document store: %w", err))
		}
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status": "ok",
		})
	})

	s.engine.Get("/health/ready", func(ctx *fiber.Ctx) error {
		c, cancel := context.WithTimeout(ctx.UserContext(), 3*time.Second)
		defer cancel()

		checks := fiber.Map{
			"detector":       "ok",
			"database":       "disabled",
			"document_store": "disabled",
			"recipe_cache":   "disabled",
		}
		status := fiber.StatusOK

		if err := s.detector.Health(c); err != nil {
			checks["detector"] = err.Error()
			status = fiber.StatusServiceUnavailable
		}
		if s.db != nil {
			checks["database"] = "ok"
			if err := s.db.PingContext(c); err != nil {
				checks["database"] = err.Error()
			}
		}
		if s.docStore.Available() {
			checks["document_store"] = "ok"
		}
		if s.redisServer != nil {
			checks["recipe_cache"] = "ok"
			if err := s.redisServer.Ping(c); err != nil {
				checks["recipe_cache"] = err.Error()
			}
		}

		return ctx.Status(status).JSON(checks)
	})
}

func (s *Server) setupMetrics() {
	s.engine.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
}
