package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"greendrake/negotiation/internal/config"
)

// clientLimiter stores the token bucket for a specific client.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware manages rate limiting for API endpoints.
type RateLimiterMiddleware struct {
	clients map[string]*clientLimiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	logger  zerolog.Logger
	stop    chan struct{}
}

// NewRateLimiterMiddleware creates a new RateLimiterMiddleware.
func NewRateLimiterMiddleware(cfg *config.Config, logger zerolog.Logger) *RateLimiterMiddleware {
	rm := &RateLimiterMiddleware{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(cfg.RateLimitRefillRate),
		burst:   cfg.RateLimitBucketSize,
		logger:  logger.With().Str("middleware", "ratelimit").Logger(),
		stop:    make(chan struct{}),
	}
	// Start a background goroutine to clean up old client entries
	go rm.cleanupClients(10*time.Minute, 30*time.Minute)
	return rm
}

// Close stops the cleanup goroutine.
func (rm *RateLimiterMiddleware) Close() {
	close(rm.stop)
}

// getClientIdentifier creates a unique key based on IP, Fingerprint, and SPA Session ID.
func getClientIdentifier(c *gin.Context) string {
	return fmt.Sprintf("%s|%s|%s", c.ClientIP(), c.GetHeader("X-BFP"), c.GetHeader("X-SPA"))
}

// getClientLimiter retrieves or creates the limiter for a given client identifier.
func (rm *RateLimiterMiddleware) getClientLimiter(identifier string) *clientLimiter {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	limiter, exists := rm.clients[identifier]
	if !exists {
		limiter = &clientLimiter{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.clients[identifier] = limiter
	}
	limiter.lastSeen = time.Now()
	return limiter
}

// cleanupClients periodically removes client entries idle for longer than maxIdle.
func (rm *RateLimiterMiddleware) cleanupClients(interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.C:
		}
		rm.mu.Lock()
		count := 0
		for id, client := range rm.clients {
			if time.Since(client.lastSeen) > maxIdle {
				delete(rm.clients, id)
				count++
			}
		}
		rm.mu.Unlock()
		if count > 0 {
			rm.logger.Debug().Int("removed", count).Msg("Rate limiter cleanup")
		}
	}
}

// Limit creates the Gin middleware handler.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := getClientIdentifier(c)
		limiter := rm.getClientLimiter(clientKey)

		if !limiter.limiter.Allow() {
			rm.logger.Warn().Str("client", clientKey).Str("path", c.FullPath()).Msg("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
