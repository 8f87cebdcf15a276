package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// HeaderAPIKey is the header carrying the service API key
const HeaderAPIKey = "x-api-key"

// APIKeyAuth rejects requests whose x-api-key header does not match the
// configured service key. An empty configured key disables the check.
func APIKeyAuth(serviceKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if serviceKey == "" {
				return next(c)
			}

			provided := c.Request().Header.Get(HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(serviceKey)) != 1 {
				return httperror.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			return next(c)
		}
	}
}
