package middleware

import (
	"net/url"
	"time"

	"securedocs/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes per-request logs at debug level. Share grants passed
// in the query string are redacted.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.IsDebugEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		rawQuery := redactQuery(c.Request.URL.RawQuery)

		c.Next()

		if rawQuery != "" {
			path = path + "?" + rawQuery
		}

		logger.Debugf(
			"%s | %d | %s | %s | %s",
			c.Request.Method,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			path,
		)
	}
}

func redactQuery(raw string) string {
	if raw == "" {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil || !values.Has("grant") {
		return raw
	}
	values.Set("grant", "REDACTED")
	return values.Encode()
}
