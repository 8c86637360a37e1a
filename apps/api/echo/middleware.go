package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// claimsMiddleware only lets through the users whose claims satisfy allowed.
func claimsMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsAdmin })
}

// staffMiddleware lets teachers & admins through.
func staffMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(Claims.IsStaff)
}

func studentMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(func(c Claims) bool { return c.IsStudent })
}
