package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jjdimalanta/mangan-app/utils"
	"golang.org/x/time/rate"
)

// CheckoutRateLimiter throttles order submissions. Checkout writes rows,
// uploads files and fires notifications, so it gets a tighter budget than
// the browsing endpoints.
func CheckoutRateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Second), 5)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "too many requests",
				"message": "please wait before submitting another order",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBodySize caps the request body, mainly for proof-of-payment uploads.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// LogCheckoutRequest records checkout attempts with their outcome status.
func LogCheckoutRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.InfoLogger.Printf(
			"Checkout - Method: %s, Path: %s, Status: %d, Duration: %v",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start),
		)
	}
}
