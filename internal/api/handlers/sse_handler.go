package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/events"
	"greendrake/negotiation/internal/services"
	"greendrake/negotiation/internal/utils"
)

// DefaultKeepAlive is how often an idle stream gets a comment line.
const DefaultKeepAlive = 15 * time.Second

// EventStreamHandler relays bus channels to clients as server-sent events.
type EventStreamHandler struct {
	bus                events.Bus
	negotiationService services.INegotiationService
	keepAlive          time.Duration
	logger             zerolog.Logger
}

func NewEventStreamHandler(bus events.Bus, negotiationService services.INegotiationService, keepAlive time.Duration, logger zerolog.Logger) *EventStreamHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &EventStreamHandler{
		bus:                bus,
		negotiationService: negotiationService,
		keepAlive:          keepAlive,
		logger:             logger.With().Str("handler", "sse").Logger(),
	}
}

// StreamOffers handles GET /v1/events/offers: every offer addressed to the caller.
func (h *EventStreamHandler) StreamOffers(c *gin.Context) {
	party, ok := middleware.PartyID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	h.stream(c, "offer", events.OffersChannel(party))
}

// StreamGame handles GET /v1/events/game/:id: the tie-break outcome of one
// negotiation the caller takes part in.
func (h *EventStreamHandler) StreamGame(c *gin.Context) {
	party, ok := middleware.PartyID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id.IsZero() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid negotiation ID format"})
		return
	}
	if _, err := h.negotiationService.FindNegotiation(c.Request.Context(), id, party); err != nil {
		apiErr := FromServiceError(err)
		c.AbortWithStatusJSON(apiErr.HTTPStatus(), gin.H{"error": apiErr.Message, "code": apiErr.Code})
		return
	}
	h.stream(c, "game-start", events.GameStartChannel(id))
}

func (h *EventStreamHandler) stream(c *gin.Context, eventName, channel string) {
	ctx := c.Request.Context()
	sub, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("Subscribe failed")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Event stream unavailable"})
		return
	}
	defer sub.Close()

	clientID := uuid.NewString()
	log := h.logger.With().Str("client_id", clientID).Str("channel", channel).Logger()
	log.Debug().Msg("Stream opened")
	defer log.Debug().Msg("Stream closed")

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	w.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-sub.Messages():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, msg.Payload); err != nil {
				return
			}
			w.Flush()
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			w.Flush()
		case <-ctx.Done():
			return
		}
	}
}
