package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const requestTimeKey = "requestTime"

// RequestTime stamps the request with its arrival time.
func RequestTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestTimeKey, time.Now())
		c.Next()
	}
}

// RequestedAt returns the stamp set by RequestTime, or now.
func RequestedAt(c *gin.Context) time.Time {
	if t, ok := c.Get(requestTimeKey); ok {
		if at, ok := t.(time.Time); ok {
			return at
		}
	}
	return time.Now()
}

// BodyLimit caps JSON and form bodies at n bytes. Multipart uploads are
// bounded by the upload handlers instead.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
