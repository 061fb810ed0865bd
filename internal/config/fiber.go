package config

import (
	"errors"
	"time"

	"YoloPipeline/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "YOLO Inference API",
			BodyLimit:         50 * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: getEnvBool("FIBER_PRINT_ROUTES", false),
			ReadTimeout:       getEnvDuration("HTTP_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	return app
}

// newErrorHandler renders errors that escape the handlers (unknown routes, 426, panics
// turned into errors) with the same JSON shape as handlerUtil.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(handlerUtil.ErrorResponse{Error: fiberErr.Message})
		}

		logger.WithFields(logrus.Fields{
			"path":  c.Path(),
			"error": err.Error(),
		}).Error("Unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(handlerUtil.ErrorResponse{
			Error: "An unexpected error occurred",
		})
	}
}
