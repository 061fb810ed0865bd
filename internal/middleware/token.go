package middleware

import (
	"errors"

	contextPkg "YoloPipeline/pkg/context"
	jwtPkg "YoloPipeline/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// NewTokenMiddleware rejects requests without a valid bearer token with 401 and a
// WWW-Authenticate challenge. Websocket upgrades may pass the token as ?access_token=.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)

	header := ctx.Get(fiber.HeaderAuthorization)
	if header == "" && websocket.IsWebSocketUpgrade(ctx) {
		if token := ctx.Query("access_token"); token != "" {
			header = "Bearer " + token
		}
	}

	accessToken, err := jwtPkg.ExtractBearer(header)
	if err != nil {
		return m.unauthorized(ctx, requestID, err, "Missing Authorization header")
	}

	if m.verifier == nil {
		return m.unauthorized(ctx, requestID, jwtPkg.ErrNoSecret, "Invalid or expired token")
	}

	principal, err := m.verifier.Verify(accessToken)
	if err != nil {
		return m.unauthorized(ctx, requestID, err, "Invalid or expired token")
	}

	ctx.Locals(jwtPkg.PrincipalKey, principal)
	ctx.SetUserContext(contextPkg.WithPrincipal(ctx.UserContext(), principal))

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"uid":        principal.UID,
	}).Debug("Authentication successful")

	return ctx.Next()
}

func (m *middleware) unauthorized(ctx *fiber.Ctx, requestID string, err error, message string) error {
	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"method":     ctx.Method(),
		"error":      err.Error(),
	}).Warn("Token verification failed")

	if errors.Is(err, jwtPkg.ErrInvalidScheme) {
		message = "Invalid Authorization header"
	}

	ctx.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}
