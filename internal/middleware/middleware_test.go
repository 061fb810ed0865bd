package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	contextPkg "YoloPipeline/pkg/context"
	jwtPkg "YoloPipeline/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const secret = "middleware-secret"

func newTestApp(t *testing.T) (*fiber.App, *middleware) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	verifier, err := jwtPkg.NewVerifier(secret, logger)
	require.NoError(t, err)

	m := New(logger, verifier).(*middleware)
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/private", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		p, ok := contextPkg.GetPrincipal(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		local, err := jwtPkg.GetPrincipal(c)
		if err != nil || local != p {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(p.UID)
	})
	app.Get("/limited", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app, m
}

func TestTokenMiddleware_RejectsWithChallenge(t *testing.T) {
	app, _ := newTestApp(t)

	for name, header := range map[string]string{
		"missing":   "",
		"basic":     "Basic dXNlcjpwdw==",
		"malformed": "Bearer not-a-jwt",
	} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, name)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"), name)

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), `"code":"UNAUTHORIZED"`, name)
	}
}

func TestTokenMiddleware_AcceptsValidToken(t *testing.T) {
	app, _ := newTestApp(t)

	token, _, err := jwtPkg.SignWithSecret(secret, map[string]interface{}{"uid": "user-7"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "user-7", string(body))
}

func TestTokenMiddleware_QueryTokenOnlyForUpgrades(t *testing.T) {
	app, _ := newTestApp(t)

	token, _, err := jwtPkg.SignWithSecret(secret, map[string]interface{}{"uid": "user-8"}, time.Hour)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private?access_token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTokenMiddleware_NoVerifierConfigured(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := New(logger, nil)

	app := fiber.New()
	app.Get("/private", m.NewTokenMiddleware, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimiter_Throttles(t *testing.T) {
	app, m := newTestApp(t)
	m.rateLimiter = newRateLimiter(rate.Limit(0.001), 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusNoContent, fiber.StatusNoContent, fiber.StatusTooManyRequests}, codes)
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set(RequestIDKey, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(RequestIDKey))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDKey), 26)
}

func TestRequestID_MalformedHeaderIsReplaced(t *testing.T) {
	app, _ := newTestApp(t)

	for _, raw := range []string{
		"req id with spaces",
		`req"injected=1`,
		strings.Repeat("a", maxRequestIDLength+1),
	} {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.Header.Set(RequestIDKey, raw)
		resp, err := app.Test(req)
		require.NoError(t, err)

		got := resp.Header.Get(RequestIDKey)
		assert.NotEqual(t, raw, got)
		assert.Len(t, got, 26, "header %q", raw)
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"req-123", true},
		{"01HZX3B5V6Q7R8S9T0W1X2Y3Z4", true},
		{"trace:abc.def_1", true},
		{"has space", false},
		{"new\nline", false},
		{strings.Repeat("x", maxRequestIDLength), true},
		{strings.Repeat("x", maxRequestIDLength+1), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validRequestID(tt.id), "id %q", tt.id)
	}
}

func TestSanitizeRequestBody(t *testing.T) {
	assert.Equal(t, "[multipart body omitted]", sanitizeRequestBody("multipart/form-data; boundary=x", []byte("--x")))
	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody("text/plain", []byte("hello")))
	assert.JSONEq(t, `{"label":"apple","token":"[SECRET]"}`,
		sanitizeRequestBody("application/json", []byte(`{"label":"apple","token":"abc"}`)))
}
