package httpserver

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/logging"
	"github.com/dmitrijs2005/todoapi/internal/server/auth"
	"github.com/dmitrijs2005/todoapi/internal/server/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestID tags each request with an id taken from the incoming header or
// freshly generated, and puts it into the request context for logging.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(common.RequestIDHeaderName, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func observe(reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		reg.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// errorHandler turns the last error pushed with c.Error into the JSON
// error envelope.
func errorHandler(l logging.Logger, env string) gin.HandlerFunc {
	withDetail := env == logging.EnvDevelopment

	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := statusFor(err)

		if status >= 500 {
			l.Error(c.Request.Context(), "request failed", "error", err, "path", c.FullPath())
		} else {
			l.Debug(c.Request.Context(), "request rejected", "error", err, "status", status)
		}

		c.AbortWithStatusJSON(status, newErrorResponse(err, status, withDetail))
	}
}

// authenticate admits requests carrying a valid access token in the
// accessToken cookie or in the Authorization header.
func (h *handler) authenticate(c *gin.Context) {
	token := accessTokenFrom(c)
	if token == "" {
		_ = c.Error(common.NewError(common.ErrorUnauthorized, "Unauthorized request"))
		c.Abort()
		return
	}

	id, err := h.users.Authenticate(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), id))
	c.Next()
}

func accessTokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(common.AccessTokenCookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader(common.AuthorizationHeaderName)
	if strings.HasPrefix(header, common.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, common.BearerPrefix))
	}
	return ""
}
