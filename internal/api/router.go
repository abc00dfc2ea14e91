package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/api/handlers"
	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/config"
	"greendrake/negotiation/internal/events"
	"greendrake/negotiation/internal/messaging"
	"greendrake/negotiation/internal/services"
)

// RouterDeps are the services the main API serves.
type RouterDeps struct {
	Negotiations  services.INegotiationService
	Notifications services.INotificationService
	Bus           events.Bus
	RateLimiter   *middleware.RateLimiterMiddleware
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, deps RouterDeps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()

	// Apply global middleware first (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware())
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Limit())
	}

	// Initialize handlers
	jsonApiHandler := handlers.NewJsonApiHandler(cfg.JwtSecret, deps.Negotiations, deps.Notifications, logger)
	restNegotiationHandler := handlers.NewRestNegotiationHandler(deps.Negotiations, logger)
	eventStreamHandler := handlers.NewEventStreamHandler(deps.Bus, deps.Negotiations, handlers.DefaultKeepAlive, logger)

	v1 := r.Group("/v1")
	{
		// JSON API methods check the token themselves, per method.
		v1.POST("/api", jsonApiHandler.HandleRequest)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/negotiations", restNegotiationHandler.ListNegotiations)
			authRequired.GET("/negotiations/:id", restNegotiationHandler.GetNegotiation)
			authRequired.GET("/events/offers", eventStreamHandler.StreamOffers)
			authRequired.GET("/events/game/:id", eventStreamHandler.StreamGame)
		}
	}

	return r
}

// testMessagePollAttempts and testMessagePollInterval bound how long
// getTestMessage waits for a message to show up.
const (
	testMessagePollAttempts = 10
	testMessagePollInterval = 200 * time.Millisecond
)

// SetupServiceRouter configures and returns the service Gin engine.
func SetupServiceRouter(rdb *redis.Client, shutdownChan chan<- struct{}, logger zerolog.Logger) *gin.Engine {
	logger = logger.With().Str("component", "service_api").Logger()
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info().Msg("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn().Msg("Shutdown channel already signaled")
			}
		case "getTestMessage":
			var args []string // Expect ["phone"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [phone]"})
				return
			}
			redisKey := messaging.MockMessageKey(args[0])

			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()

			var data string
			var getErr error
			found := false
			for i := 0; i < testMessagePollAttempts; i++ {
				data, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if !errors.Is(getErr, redis.Nil) {
					logger.Error().Err(getErr).Str("key", redisKey).Msg("Error reading test message")
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(testMessagePollInterval)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test message not found in Redis for key %s", redisKey)})
				return
			}

			var msg messaging.MockMessage
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				logger.Error().Err(err).Str("key", redisKey).Msg("Error decoding test message")
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored message data"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
