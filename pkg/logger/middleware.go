package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Middleware 返回记录 HTTP 请求的 fiber 中间件
func Middleware(l *zap.Logger) fiber.Handler {
	l = OrDefault(l).Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if err != nil {
			l.Warn("request failed", append(fields, zap.Error(err))...)
			return err
		}
		l.Debug("request", fields...)
		return nil
	}
}
