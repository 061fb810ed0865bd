package jwtPkg

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"YoloPipeline/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
	PrincipalKey      = "principal"
)

var (
	ErrMissingHeader = errors.New("missing Authorization header")
	ErrInvalidScheme = errors.New("invalid Authorization format")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNoSecret      = errors.New("JWT secret not configured")
)

type IVerifier interface {
	Verify(token string) (entity.Principal, error)
}

type verifier struct {
	secret []byte
	log    *logrus.Logger
}

func NewVerifier(secret string, log *logrus.Logger) (IVerifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &verifier{secret: []byte(secret), log: log}, nil
}

func NewVerifierFromEnv(log *logrus.Logger) (IVerifier, error) {
	return NewVerifier(os.Getenv(AccessTokenSecret), log)
}

// Verify checks an HS256 token and returns its subject. uid wins over sub; email is optional.
func (v *verifier) Verify(accessToken string) (entity.Principal, error) {
	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		v.log.WithField("error", err.Error()).Debug("Failed to parse JWT token")
		return entity.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.Principal{}, ErrInvalidToken
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return entity.Principal{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	email, _ := claims["email"].(string)
	return entity.Principal{UID: uid, Email: email}, nil
}

// ExtractBearer returns the token part of an "Authorization: Bearer <token>" header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingHeader
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidScheme
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidScheme
	}
	return token, nil
}

func Sign(data map[string]interface{}, expiredAt time.Duration) (string, int64, error) {
	secret := os.Getenv(AccessTokenSecret)
	if secret == "" {
		return "", 0, ErrNoSecret
	}
	return SignWithSecret(secret, data, expiredAt)
}

func SignWithSecret(secret string, data map[string]interface{}, expiredAt time.Duration) (string, int64, error) {
	exp := time.Now().Add(expiredAt).Unix()

	claims := jwt.MapClaims{}
	for k, v := range data {
		claims[k] = v
	}
	claims["exp"] = exp
	claims["iat"] = time.Now().Unix()

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(secret))
	if err != nil {
		return "", 0, err
	}

	return accessToken, exp, nil
}

func GetPrincipal(c *fiber.Ctx) (entity.Principal, error) {
	principal, ok := c.Locals(PrincipalKey).(entity.Principal)
	if !ok {
		return entity.Principal{}, fiber.ErrUnauthorized
	}
	return principal, nil
}
