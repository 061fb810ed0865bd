package predictionHandler

import (
	"errors"
	"time"

	"YoloPipeline/internal/api/prediction"
	"YoloPipeline/internal/entity"
	contextPkg "YoloPipeline/pkg/context"
	"YoloPipeline/pkg/handlerUtil"
	jwtPkg "YoloPipeline/pkg/jwt"
	"YoloPipeline/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const (
	requestTimeout = 10 * time.Second
	predictTimeout = 30 * time.Second
)

func (h *PredictionHandler) Predict(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), predictTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing predict request")

	principal, err := jwtPkg.GetPrincipal(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		file, err = ctx.FormFile("image")
	}
	if err != nil {
		return errHandler.Handle(ctx, requestID, prediction.ErrNoImage, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id":   requestID,
		"path":         ctx.Path(),
		"file_name":    file.Filename,
		"file_size":    file.Size,
		"content_type": file.Header.Get(fiber.HeaderContentType),
	}).Debug("Processing file upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
	}

	data, err := h.utils.ReadFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
	}

	result, err := h.predictionService.Predict(c, prediction.PredictInput{
		Image:       data,
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		UserID:      principal.UID,
	})
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "predict")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"detections": len(result.Detections),
		}).Info("Prediction successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *PredictionHandler) ListPredictions(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	limit, err := h.parseLimit(ctx)
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	predictions, err := h.predictionService.ListPredictions(c, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_predictions")
	}

	response := prediction.PredictionListResponse{
		Predictions: make([]prediction.PredictionResponse, 0, len(predictions)),
		Count:       len(predictions),
	}
	for _, p := range predictions {
		response.Predictions = append(response.Predictions, toPredictionResponse(p))
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *PredictionHandler) ListOutputs(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	limit, err := h.parseLimit(ctx)
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	outputs, err := h.predictionService.ListOutputs(c, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_outputs")
	}

	response := prediction.OutputListResponse{
		Outputs: make([]prediction.OutputResponse, 0, len(outputs)),
		Count:   len(outputs),
	}
	for _, o := range outputs {
		response.Outputs = append(response.Outputs, prediction.OutputResponse{ID: o.ID, Data: o.Data})
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *PredictionHandler) UpdateOutput(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing update output request")

	var fields map[string]any
	if err := ctx.BodyParser(&fields); err != nil {
		return errHandler.Handle(ctx, requestID, prediction.ErrInvalidOutputUpdate, ctx.Path(), "parse_request_body")
	}

	req := prediction.UpdateOutputRequest{
		ID:     ctx.Params("id"),
		Fields: fields,
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.predictionService.UpdateOutput(c, req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "update_output")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
}

func (h *PredictionHandler) DeleteOutput(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("output ID is required"), ctx.Path())
	}

	if err := h.predictionService.DeleteOutput(c, id); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_output")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
}

func (h *PredictionHandler) ListRecipes(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	limit, err := h.parseLimit(ctx)
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	recipes, err := h.predictionService.ListRecipes(c, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_recipes")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, prediction.RecipeListResponse{
			Recipes: recipes,
			Count:   len(recipes),
		})
	}
}

func (h *PredictionHandler) parseLimit(ctx *fiber.Ctx) (int, error) {
	var query prediction.ListQuery
	if err := ctx.QueryParser(&query); err != nil {
		return 0, err
	}
	if err := h.validator.Struct(query); err != nil {
		return 0, err
	}
	return query.Resolve(), nil
}

func toPredictionResponse(p entity.PredictionLog) prediction.PredictionResponse {
	return prediction.PredictionResponse{
		ID:         p.ID,
		Filename:   p.Filename,
		Label:      p.Label,
		Confidence: p.Confidence,
		UserID:     p.UserID,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}
