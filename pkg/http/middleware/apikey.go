package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	APIKeyHeader = "x-api-key"
	APIKeyQuery  = "key"
)

// RequireAPIKey accepts the shared key from the x-api-key header or the key
// query parameter. An empty key disables the check.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if key == "" {
			return next
		}
		want := []byte(key)

		return func(c echo.Context) error {
			if match(want, c.Request().Header.Get(APIKeyHeader)) || match(want, c.QueryParam(APIKeyQuery)) {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"ok":    false,
				"error": "unauthorized",
			})
		}
	}
}

func match(want []byte, got string) bool {
	return got != "" && subtle.ConstantTimeCompare(want, []byte(got)) == 1
}
