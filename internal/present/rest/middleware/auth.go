package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/present/rest/presenter"
	"github.com/totegamma/ticketgate/internal/service"
)

var tracer = otel.Tracer("auth")

// Authenticator is implemented by service.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.AuthResult, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Identify puts the authenticated requester into the request context when a
// valid bearer token is present. Requests without one pass through unchanged.
func (s *AuthMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.Identify")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			result, err := s.auth.Authenticate(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.Identify: s.auth.Authenticate failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterRoleCtxKey, result.Role)
			span.SetAttributes(attribute.String("RequesterRole", string(result.Role)))
			if result.Role == domain.RoleDevice {
				ctx = context.WithValue(ctx, domain.RequesterDeviceCtxKey, result.DeviceID)
				ctx = context.WithValue(ctx, domain.RequesterEventsCtxKey, result.Events)
				span.SetAttributes(attribute.String("RequesterDevice", result.DeviceID))
			}
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func requireRole(role domain.Role, msg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if got, _ := c.Request().Context().Value(domain.RequesterRoleCtxKey).(domain.Role); got != role {
				return presenter.Unauthorized(c, msg)
			}
			return next(c)
		}
	}
}

// RequireDevice rejects requests that Identify did not authenticate as a scanner.
var RequireDevice = requireRole(domain.RoleDevice, "device token required")

// RequireIssuer rejects requests that Identify did not authenticate as an issuer.
var RequireIssuer = requireRole(domain.RoleIssuer, "issuer token required")
