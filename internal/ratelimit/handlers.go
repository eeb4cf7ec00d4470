package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRateLimitStatus returns the current limit policy and limiter health
// for the requesting client.
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ip": c.ClientIP(),
			"limits": gin.H{
				"per_minute": rl.config.PerMinute,
				"period":     "1 minute",
			},
			"limiter":   rl.GetStats(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// HandleResetRateLimits clears limiter state, for one IP when ?ip= is given
// or globally otherwise. Mounted behind the reviewer token.
func (rl *RateLimiter) HandleResetRateLimits() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if ip := c.Query("ip"); ip != "" {
			if err := rl.InvalidateIP(ctx, ip); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "failed to reset rate limits",
					"details": err.Error(),
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"message":   "rate limits reset",
				"ip":        ip,
				"timestamp": time.Now().Format(time.RFC3339),
			})
			return
		}

		if err := rl.InvalidateAll(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "failed to reset rate limits",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "all rate limits reset",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}
