package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"greendrake/negotiation/internal/api/middleware"
	"greendrake/negotiation/internal/auth"
	"greendrake/negotiation/internal/models"
	"greendrake/negotiation/internal/services"
	"greendrake/negotiation/internal/utils"
)

// Context key type for the resolved caller
type authContextKey string

const partyIDKey authContextKey = "partyID"

// Helper to get the caller from context
func getPartyFromContext(ctx context.Context) (utils.SixID, bool) {
	val, ok := ctx.Value(partyIDKey).(utils.SixID)
	return val, ok
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	jwtSecret            string
	negotiationService   services.INegotiationService
	notificationService  services.INotificationService
	logger               zerolog.Logger
	methods              map[string]apiMethodFunc
	authRequiredByMethod map[string]bool
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	jwtSecret string,
	negotiationService services.INegotiationService,
	notificationService services.INotificationService,
	logger zerolog.Logger,
) *JsonApiHandler {
	h := &JsonApiHandler{
		jwtSecret:           jwtSecret,
		negotiationService:  negotiationService,
		notificationService: notificationService,
		logger:              logger.With().Str("handler", "json_api").Logger(),
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                 h.ping,
		"createNegotiation":    h.createNegotiation,
		"submitOffer":          h.submitOffer,
		"getNegotiation":       h.getNegotiation,
		"listNegotiations":     h.listNegotiations,
		"getActiveNegotiation": h.getActiveNegotiation,
		"myNotifications":      h.myNotifications,
		"markNotificationRead": h.markNotificationRead,
	}
	h.authRequiredByMethod = map[string]bool{
		"ping": false,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, NewApiError(CodeValidation, "Failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, NewApiError(CodeValidation, "Invalid JSON request format"))
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, NewApiError(CodeValidation, fmt.Sprintf("Unknown method: %s", req.Method)))
		return
	}

	if authErr := h.checkAuthForMethod(c, req.Method); authErr != nil {
		h.sendErrorResponse(c, authErr)
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr)
		return
	}

	h.sendSuccessResponse(c, result)
}

// methodRequiresAuth reports whether a method needs a caller. Methods not
// listed as public require one.
func (h *JsonApiHandler) methodRequiresAuth(method string) bool {
	required, listed := h.authRequiredByMethod[method]
	return !listed || required
}

// checkAuthForMethod validates the bearer token when the method needs a
// caller and stores the party id in c.Request.Context().
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) *ApiError {
	if !h.methodRequiresAuth(method) {
		return nil
	}

	tokenString, ok := middleware.BearerToken(c)
	if !ok {
		return NewApiError(CodeUnauthorized, "Authorization header format must be Bearer {token}")
	}
	claims, err := auth.ValidateJWT(tokenString, h.jwtSecret)
	if err != nil {
		h.logger.Debug().Err(err).Str("method", method).Msg("Token validation failed")
		return NewApiError(CodeUnauthorized, "Invalid or expired token")
	}
	partyID, err := claims.Party()
	if err != nil {
		h.logger.Error().Str("party_id", claims.PartyID).Str("method", method).Msg("Invalid party id in valid JWT")
		return NewApiError(CodeUnauthorized, "Invalid or expired token")
	}

	ctx := context.WithValue(c.Request.Context(), partyIDKey, partyID)
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	resp := JsonApiResponse{Success: true, Data: data}
	c.JSON(http.StatusOK, resp)
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, apiErr *ApiError) {
	resp := JsonApiResponse{Success: false, Error: apiErr.Message, Code: apiErr.Code}
	c.JSON(http.StatusOK, resp)
}

// toApiError maps a service error onto the API error shape.
func (h *JsonApiHandler) toApiError(method string, err error) *ApiError {
	apiErr := FromServiceError(err)
	if apiErr.Code == CodeUnknown {
		h.logger.Error().Err(err).Str("method", method).Msg("API method failed")
	}
	return apiErr
}

func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	var argArray []json.RawMessage
	if rawArgPayload == nil {
		return NewApiError(CodeValidation, "Missing 'arguments' field; expected a JSON array with one argument.")
	}

	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError(CodeValidation, "Invalid 'arguments': expected a JSON array.")
	}

	if len(argArray) == 0 {
		return NewApiError(CodeValidation, "Invalid 'arguments': array is empty, but one argument is expected.")
	}

	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError(CodeValidation, "Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

// caller returns the party resolved by checkAuthForMethod.
func caller(c *gin.Context) (utils.SixID, *ApiError) {
	party, ok := getPartyFromContext(c.Request.Context())
	if !ok {
		return utils.SixID{}, NewApiError(CodeUnauthorized, "Authentication required")
	}
	return party, nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

// CreateNegotiationArgs opens a negotiation as the caller (the buyer).
type CreateNegotiationArgs struct {
	SellerID  utils.SixID  `json:"sellerId"`
	ProductID utils.SixID  `json:"productId"`
	VariantID utils.SixID  `json:"variantId"`
	Amount    models.Money `json:"amount"`
	Text      string       `json:"text"`
}

func (h *JsonApiHandler) createNegotiation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs CreateNegotiationArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	n, err := h.negotiationService.CreateNegotiation(c.Request.Context(), services.CreateNegotiationInput{
		Buyer:     party,
		Seller:    reqArgs.SellerID,
		ProductID: reqArgs.ProductID,
		VariantID: reqArgs.VariantID,
		Amount:    reqArgs.Amount,
		Text:      reqArgs.Text,
	})
	if err != nil {
		return nil, h.toApiError("createNegotiation", err)
	}
	return n, nil
}

// SubmitOfferArgs is one action on an existing negotiation.
type SubmitOfferArgs struct {
	NegotiationID utils.SixID   `json:"bidId"`
	Type          string        `json:"type"`
	Amount        *models.Money `json:"amount,omitempty"`
	Text          string        `json:"text,omitempty"`
	TargetParty   *utils.SixID  `json:"receiver,omitempty"`
}

func (h *JsonApiHandler) submitOffer(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SubmitOfferArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	result, err := h.negotiationService.SubmitAction(c.Request.Context(), services.ActionInput{
		NegotiationID: reqArgs.NegotiationID,
		ActingParty:   party.Ptr(),
		TargetParty:   reqArgs.TargetParty,
		Type:          models.ParseOfferType(reqArgs.Type),
		Amount:        reqArgs.Amount,
		Text:          reqArgs.Text,
	})
	if err != nil {
		return nil, h.toApiError("submitOffer", err)
	}
	return result, nil
}

// NegotiationIDArgs addresses one negotiation.
type NegotiationIDArgs struct {
	NegotiationID utils.SixID `json:"bidId"`
}

func (h *JsonApiHandler) getNegotiation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs NegotiationIDArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	n, err := h.negotiationService.FindNegotiation(c.Request.Context(), reqArgs.NegotiationID, party)
	if err != nil {
		return nil, h.toApiError("getNegotiation", err)
	}
	return n, nil
}

// ListNegotiationsArgs filters and pages the caller's negotiations.
type ListNegotiationsArgs struct {
	SellerID  *utils.SixID             `json:"sellerId,omitempty"`
	BuyerID   *utils.SixID             `json:"buyerId,omitempty"`
	ProductID *utils.SixID             `json:"productId,omitempty"`
	VariantID *utils.SixID             `json:"variantId,omitempty"`
	Status    models.NegotiationStatus `json:"status,omitempty"`
	First     *int                     `json:"first,omitempty"`
	After     string                   `json:"after,omitempty"`
}

func (h *JsonApiHandler) listNegotiations(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ListNegotiationsArgs
	if args != nil {
		if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
			return nil, apiErr
		}
	}

	filter := services.NegotiationFilter{
		SellerID:  reqArgs.SellerID,
		BuyerID:   reqArgs.BuyerID,
		ProductID: reqArgs.ProductID,
		VariantID: reqArgs.VariantID,
		Status:    reqArgs.Status,
	}
	page, err := h.negotiationService.ListNegotiations(c.Request.Context(), party, filter, reqArgs.First, reqArgs.After)
	if err != nil {
		return nil, h.toApiError("listNegotiations", err)
	}
	return page, nil
}

// ActiveNegotiationArgs addresses the caller's negotiation on one variant.
type ActiveNegotiationArgs struct {
	ProductID utils.SixID `json:"productId"`
	VariantID utils.SixID `json:"variantId"`
}

func (h *JsonApiHandler) getActiveNegotiation(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ActiveNegotiationArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}

	active, err := h.negotiationService.GetActiveNegotiation(c.Request.Context(), party, reqArgs.ProductID, reqArgs.VariantID)
	if err != nil {
		return nil, h.toApiError("getActiveNegotiation", err)
	}
	if active == nil {
		// Keep "data" present so clients can tell "none" from an error.
		return json.RawMessage("null"), nil
	}
	return active, nil
}

type NotificationListArgs struct {
	Limit int `json:"limit"`
}

func (h *JsonApiHandler) myNotifications(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs NotificationListArgs
	if args != nil {
		if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
			return nil, apiErr
		}
	}

	list, err := h.notificationService.ListForUser(c.Request.Context(), party, reqArgs.Limit)
	if err != nil {
		return nil, h.toApiError("myNotifications", err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

type NotificationIDArgs struct {
	NotificationID utils.SixID `json:"notificationId"`
}

func (h *JsonApiHandler) markNotificationRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	party, apiErr := caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs NotificationIDArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.NotificationID.IsZero() {
		return nil, NewApiError(CodeValidation, "notificationId is required")
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), party, reqArgs.NotificationID); err != nil {
		return nil, h.toApiError("markNotificationRead", err)
	}
	return true, nil
}
