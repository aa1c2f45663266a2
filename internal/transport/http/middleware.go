package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/common/tracing"
)

// AccessLog 每个请求记一条访问日志。
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("http request")
	}
}

// Tracing 为每个请求开一个 span，上游带 trace 上下文时接续。
func Tracing(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := tracing.StartSpanFromHTTP(serviceName, c.Request)
		defer span.Finish()
		c.Next()
		ext.HTTPStatusCode.Set(span, uint16(c.Writer.Status()))
		if c.Writer.Status() >= 500 {
			ext.Error.Set(span, true)
		}
	}
}
