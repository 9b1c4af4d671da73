package middlewares

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"easypay/pkg/app"
	"easypay/pkg/logger"
)

// 请求体超过该长度时不记录
const maxLoggedBody = 4096

// 不允许出现在日志中的参数
var sensitiveParams = []string{"authorizationId", "authorization_id"}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Logger 记录请求日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {

		// 获取 response 内容
		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		// 获取请求数据，回调请求携带 authorizationId，不读取
		var requestBody []byte
		callback := strings.HasSuffix(c.Request.URL.Path, "/callback")
		if c.Request.Body != nil && !callback {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		start := time.Now()
		c.Next()

		cost := time.Since(start)
		responseStatus := c.Writer.Status()

		logFields := []zap.Field{
			zap.Int("status", responseStatus),
			zap.String("request", c.Request.Method+" "+c.Request.URL.Path),
			zap.String("query", redactQuery(c.Request.URL.RawQuery)),
			zap.String("ip", app.ClientIP(c)),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.Duration("time", cost),
		}
		if (c.Request.Method == "POST" || c.Request.Method == "PUT") && !callback && len(requestBody) <= maxLoggedBody {
			logFields = append(logFields, zap.String("Request Body", string(requestBody)))
			if !strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/csv") {
				logFields = append(logFields, zap.String("Response Body", w.body.String()))
			}
		}

		if responseStatus > 400 && responseStatus <= 499 {
			logger.Warn("HTTP Warning "+cast.ToString(responseStatus), logFields...)
		} else if responseStatus >= 500 && responseStatus <= 599 {
			logger.Error("HTTP Error "+cast.ToString(responseStatus), logFields...)
		} else {
			logger.Debug("HTTP Access Log", logFields...)
		}
	}
}

// redactQuery 隐藏查询串中的敏感参数
func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	changed := false
	for _, key := range sensitiveParams {
		if values.Has(key) {
			values.Set(key, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
