package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxStack bounds the goroutine stack captured for a recovered panic.
const maxStack = 8 << 10

// Recovery turns a handler panic into a 500 that carries the request ID, so
// a caller reporting a failed assessment can be matched to the log line.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				perr := panicError(r)
				if errors.Is(perr, http.ErrAbortHandler) {
					panic(r)
				}

				stack := make([]byte, maxStack)
				stack = stack[:runtime.Stack(stack, false)]
				rid := GetRequestID(c)
				logger.Error().
					Err(perr).
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Bytes("stack", stack).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
					"error":      "internal server error",
					"request_id": rid,
				})
			}()
			return next(c)
		}
	}
}

func panicError(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("panic: %v", r)
}
