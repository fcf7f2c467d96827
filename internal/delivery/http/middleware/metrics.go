package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Metrics records request count and latency labelled by the matched route
// pattern, not the raw path.
func Metrics(rec HTTPRecorder) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		rec.RecordHTTPRequest(c.Method(), route, c.Response().StatusCode(), time.Since(start))
		return err
	}
}
