package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// RequestRecorder receives one call per served request.
type RequestRecorder interface {
	RecordHTTPRequest(method, route, status string)
}

// RequestMetrics counts requests by route template, so path parameters do not
// inflate label cardinality.
func RequestMetrics(rec RequestRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		rec.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status))
		return err
	}
}
