package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// quietPaths не логируются при успешном ответе (пробы и скрейпинг метрик).
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// EchoZapLogger возвращает middleware для Echo, которое логирует запросы с помощью zap.
// Если клиент не прислал X-Request-ID, он генерируется и возвращается в ответе.
func EchoZapLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
				req.Header.Set(echo.HeaderXRequestID, id)
			}
			res.Header().Set(echo.HeaderXRequestID, id)

			requestFields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.String("request_id", id),
			}

			err := next(c)

			fields := append(requestFields,
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			)

			if err != nil {
				log.Error("Handler error", append(fields, zap.Error(err))...)
				return err
			}

			n := res.Status
			switch {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			case n >= http.StatusMultipleChoices:
				log.Info("Redirection", fields...)
			default:
				if _, quiet := quietPaths[c.Path()]; quiet {
					return nil
				}
				log.Info("Success", fields...)
			}
			return nil
		}
	}
}
