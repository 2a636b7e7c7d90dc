package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ActorIDLocal is the fiber local under which the session middleware publishes the user id for logging.
const ActorIDLocal = "actor_user_id"

// RequestLogger logs every request and records request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if userID, ok := c.Locals(ActorIDLocal).(int64); ok {
			fields = append(fields, zap.Int64("user_id", userID))
		}
		logger.Info("request", fields...)

		metrics.RecordRequest(route, c.Method(), status, latency)
		return err
	}
}
