package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fernhill/clienthub/internal/contexts"
)

// DeviceCookie identifies the client runtime a session belongs to.
const DeviceCookie = "ch_device"

const deviceCookieMaxAge = 365 * 24 * 60 * 60

// WithRequestID stamps every request with an id for log correlation.
func WithRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := contexts.WithRequestID(c.Request.Context(), contexts.GenerateRequestID())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// WithDevice assigns a device id cookie on first contact and carries it in
// the request context. Session managers are keyed by this id.
func WithDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID, err := c.Cookie(DeviceCookie)
		if err != nil || deviceID == "" {
			deviceID = uuid.NewString()
			c.SetCookie(DeviceCookie, deviceID, deviceCookieMaxAge, "/", "", false, true)
		}

		ctx := contexts.WithDeviceID(c.Request.Context(), deviceID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
