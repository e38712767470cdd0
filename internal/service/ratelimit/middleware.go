package ratelimit

import (
	"strconv"

	xhttp "OptionScan/pkg/http"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests over the per-client budget with 429.
// Clients are keyed by echo's RealIP.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	retryAfter := "1"
	if l.rps > 0 && l.rps < 1 {
		retryAfter = strconv.Itoa(int(1/float64(l.rps)) + 1)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", retryAfter)
				return xhttp.TooManyRequestsError("rate limit exceeded, retry later")
			}
			return next(c)
		}
	}
}
