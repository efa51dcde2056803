package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/jjdimalanta/mangan-app/utils"
)

// UploadLoggerMiddleware traces proof-of-payment uploads so failed uploads can
// be matched against customer reports. Handlers set order_reference on the
// context once the order is known.
func UploadLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.InfoLogger.Printf("Receiving payment proof upload from %s", c.ClientIP())

		c.Next()

		ref := c.GetString("order_reference")
		if ref == "" {
			ref = "unknown"
		}
		if c.Writer.Status() < 300 {
			utils.InfoLogger.Printf("Payment proof stored for order: %s", ref)
		} else {
			utils.ErrorLogger.Printf("Payment proof upload failed for order: %s (status %d)", ref, c.Writer.Status())
		}
	}
}
