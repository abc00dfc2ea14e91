package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/services"
	"greendrake/negotiation/internal/utils"
)

// RestNegotiationHandler handles REST requests for negotiations.
type RestNegotiationHandler struct {
	negotiationService services.INegotiationService
	logger             zerolog.Logger
}

// NewRestNegotiationHandler creates a new RestNegotiationHandler.
func NewRestNegotiationHandler(negotiationService services.INegotiationService, logger zerolog.Logger) *RestNegotiationHandler {
	return &RestNegotiationHandler{
		negotiationService: negotiationService,
		logger:             logger.With().Str("handler", "rest_negotiation").Logger(),
	}
}

func (h *RestNegotiationHandler) respondError(c *gin.Context, apiErr *ApiError) {
	c.JSON(apiErr.HTTPStatus(), gin.H{"error": apiErr.Message, "code": apiErr.Code})
}

// optionalIDQuery parses an id query parameter. Absent yields nil.
func optionalIDQuery(c *gin.Context, key string) (*utils.SixID, *ApiError) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := utils.ParseSixID(raw)
	if err != nil {
		return nil, NewApiError(CodeValidation, "Invalid "+key)
	}
	return &id, nil
}

// ListNegotiations handles GET /v1/negotiations
func (h *RestNegotiationHandler) ListNegotiations(c *gin.Context) {
	party, ok := middleware.PartyID(c)
	if !ok {
		h.respondError(c, NewApiError(CodeUnauthorized, "Authentication required"))
		return
	}

	var filter services.NegotiationFilter
	for key, dst := range map[string]**utils.SixID{
		"seller":  &filter.SellerID,
		"buyer":   &filter.BuyerID,
		"product": &filter.ProductID,
		"variant": &filter.VariantID,
	} {
		id, apiErr := optionalIDQuery(c, key)
		if apiErr != nil {
			h.respondError(c, apiErr)
			return
		}
		*dst = id
	}
	filter.Status = models.NegotiationStatus(c.Query("status"))

	var first *int
	if raw := c.Query("first"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, NewApiError(CodeValidation, "Invalid first"))
			return
		}
		first = &n
	}

	page, err := h.negotiationService.ListNegotiations(c.Request.Context(), party, filter, first, c.Query("after"))
	if err != nil {
		apiErr := FromServiceError(err)
		if apiErr.Code == CodeUnknown {
			h.logger.Error().Err(err).Msg("Failed to list negotiations")
		}
		h.respondError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetNegotiation handles GET /v1/negotiations/:id
func (h *RestNegotiationHandler) GetNegotiation(c *gin.Context) {
	party, ok := middleware.PartyID(c)
	if !ok {
		h.respondError(c, NewApiError(CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		h.respondError(c, NewApiError(CodeValidation, "Invalid negotiation ID format"))
		return
	}

	n, err := h.negotiationService.FindNegotiation(c.Request.Context(), id, party)
	if err != nil {
		apiErr := FromServiceError(err)
		if apiErr.Code == CodeUnknown {
			h.logger.Error().Err(err).Str("negotiation_id", id.String()).Msg("Failed to load negotiation")
		}
		h.respondError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, n)
}
