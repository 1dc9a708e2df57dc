package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "MacroPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns handler panics into 500 responses.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					if l != nil {
						l.Error("http handler panic",
							applogger.String("route", c.Path()),
							applogger.Error(err),
							applogger.String("stack", string(debug.Stack())))
					}
					_ = c.JSON(http.StatusInternalServerError, map[string]interface{}{
						"status":  http.StatusInternalServerError,
						"message": "Internal Server Error",
					})
				}
			}()
			return next(c)
		}
	}
}
