package predictionHandler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"YoloPipeline/internal/api/prediction"
	"YoloPipeline/internal/entity"
	"YoloPipeline/internal/middleware"
	jwtPkg "YoloPipeline/pkg/jwt"
	"YoloPipeline/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

type fakeService struct {
	predictInput prediction.PredictInput
	lastLimit    int
	updateErr    error
	recipesErr   error
}

func (s *fakeService) Predict(_ context.Context, in prediction.PredictInput) (prediction.PredictResponse, error) {
	s.predictInput = in
	return prediction.PredictResponse{
		Detections: []entity.DetectionItem{{Label: "apple", Confidence: 0.99, Box: []float64{0, 0, 10, 10}}},
		Meta:       map[string]any{"imgsz": 640, "conf": 0.25, "iou": 0.45},
		DocumentID: "doc-1",
	}, nil
}

func (s *fakeService) ListPredictions(_ context.Context, limit int) ([]entity.PredictionLog, error) {
	s.lastLimit = limit
	return []entity.PredictionLog{{ID: 2, Filename: "a.jpg", Label: "apple", Confidence: 0.9, CreatedAt: time.Now()}}, nil
}

func (s *fakeService) ListOutputs(_ context.Context, limit int) ([]entity.StoredOutput, error) {
	s.lastLimit = limit
	return []entity.StoredOutput{{ID: "doc-1", Data: map[string]any{"filename": "a.jpg"}}}, nil
}

func (s *fakeService) UpdateOutput(context.Context, prediction.UpdateOutputRequest) error {
	return s.updateErr
}

func (s *fakeService) DeleteOutput(context.Context, string) error { return nil }

func (s *fakeService) ListRecipes(_ context.Context, limit int) ([]entity.Recipe, error) {
	s.lastLimit = limit
	if s.recipesErr != nil {
		return nil, s.recipesErr
	}
	return []entity.Recipe{{Detected: true, Title: "Quick Apple Dish"}}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *fakeService) {
	t.Helper()
	logger, _ := test.NewNullLogger()

	verifier, err := jwtPkg.NewVerifier(secret, logger)
	require.NoError(t, err)
	mw := middleware.New(logger, verifier)

	svc := &fakeService{}
	h := New(logger, validator.New(), mw, svc, utils.New())

	app := fiber.New(fiber.Config{StrictRouting: true, CaseSensitive: true})
	app.Use(mw.NewRequestIDMiddleware())
	h.Start(app.Group("/api/v1"))
	return app, svc
}

func bearer(t *testing.T) string {
	t.Helper()
	token, _, err := jwtPkg.SignWithSecret(secret, map[string]interface{}{"uid": "test-user"}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func uploadRequest(t *testing.T, field, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, jsoniter.Unmarshal(body, v), string(body))
}

func TestPredict_RequiresAuth(t *testing.T) {
	app, svc := newTestApp(t)

	resp, err := app.Test(uploadRequest(t, "file", "test.jpg", "image/jpeg", []byte("fake image bytes")))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	assert.Empty(t, svc.predictInput.Image)
}

func TestPredict_ReturnsDetections(t *testing.T) {
	app, svc := newTestApp(t)

	req := uploadRequest(t, "file", "test.jpg", "image/jpeg", []byte("fake image bytes"))
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got map[string]any
	decode(t, resp, &got)
	require.Len(t, got["detections"], 1)
	assert.Equal(t, "apple", got["detections"].([]any)[0].(map[string]any)["label"])
	assert.Equal(t, "doc-1", got["document_id"])
	assert.NotContains(t, got, "published")
	assert.Contains(t, got, "meta")

	assert.Equal(t, "test-user", svc.predictInput.UserID)
	assert.Equal(t, "test.jpg", svc.predictInput.Filename)
	assert.Equal(t, []byte("fake image bytes"), svc.predictInput.Image)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPredict_AcceptsImageField(t *testing.T) {
	app, svc := newTestApp(t)

	req := uploadRequest(t, "image", "photo.png", "image/png", []byte("png bytes"))
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "photo.png", svc.predictInput.Filename)
}

func TestPredict_RejectsUnsupportedType(t *testing.T) {
	app, svc := newTestApp(t)

	req := uploadRequest(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "Unsupported file type", body["error"])
	assert.Empty(t, svc.predictInput.Filename)
}

func TestPredict_MissingFile(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListPredictions_Limit(t *testing.T) {
	app, svc := newTestApp(t)

	cases := []struct {
		query     string
		status    int
		wantLimit int
	}{
		{"", fiber.StatusOK, prediction.DefaultListLimit},
		{"?limit=5", fiber.StatusOK, 5},
		{"?limit=1000", fiber.StatusBadRequest, 0},
		{"?limit=-1", fiber.StatusBadRequest, 0},
	}

	for _, tc := range cases {
		svc.lastLimit = 0
		req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions"+tc.query, nil)
		req.Header.Set("Authorization", bearer(t))
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, tc.status, resp.StatusCode, tc.query)
		assert.Equal(t, tc.wantLimit, svc.lastLimit, tc.query)
	}
}

func TestListPredictions_RequiresAuth(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOutputs(t *testing.T) {
	app, svc := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/outputs?limit=10", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list prediction.OutputListResponse
	decode(t, resp, &list)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "doc-1", list.Outputs[0].ID)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/outputs/doc-1", strings.NewReader(`{"reviewed":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	svc.updateErr = prediction.ErrOutputNotFound
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/outputs/missing", strings.NewReader(`{"reviewed":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/outputs/doc-1", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/outputs/doc-1", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestListRecipes(t *testing.T) {
	app, svc := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recipes", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list prediction.RecipeListResponse
	decode(t, resp, &list)
	require.Len(t, list.Recipes, 1)
	assert.Equal(t, "Quick Apple Dish", list.Recipes[0].Title)

	svc.recipesErr = prediction.ErrRecipeCacheUnavailable
	req = httptest.NewRequest(http.MethodGet, "/api/v1/recipes", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestPredictStream_RequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predict/ws", nil)
	req.Header.Set("Authorization", bearer(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
