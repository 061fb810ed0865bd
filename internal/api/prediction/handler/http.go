package predictionHandler

import (
	predictionService "YoloPipeline/internal/api/prediction/service"
	"YoloPipeline/internal/middleware"
	"YoloPipeline/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type PredictionHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	predictionService predictionService.IPredictionService
	utils             utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ps predictionService.IPredictionService,
	utils utils.IUtils,
) *PredictionHandler {
	return &PredictionHandler{
		predictionService: ps,
		log:               log,
		validator:         validator,
		middleware:        middleware,
		utils:             utils,
	}
}

func (h *PredictionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Use("/predict/ws", wsMiddleware)
	srv.Get("/predict/ws", h.middleware.NewTokenMiddleware, websocket.New(h.handleWebSocket))
	srv.Post("/predict", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.Predict)

	srv.Get("/predictions", h.middleware.NewTokenMiddleware, h.ListPredictions)

	srv.Get("/outputs", h.middleware.NewTokenMiddleware, h.ListOutputs)
	srv.Patch("/outputs/:id", h.middleware.NewTokenMiddleware, h.UpdateOutput)
	srv.Delete("/outputs/:id", h.middleware.NewTokenMiddleware, h.DeleteOutput)

	srv.Get("/recipes", h.middleware.NewTokenMiddleware, h.ListRecipes)
}
