package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/service"
)

// AuthAPI is the part of the auth client exposed over HTTP.
type AuthAPI interface {
	Request(ctx context.Context, params core.RequestParams, opts *service.RequestOptions) (core.RequestResult, error)
	Pair(ctx context.Context, uri string) (core.Pairing, error)
	GetPendingRequests(ctx context.Context) (map[uint64]core.PendingRequest, error)
	FormatMessage(payload core.CacaoRequestPayload, iss string) (string, error)
	Respond(ctx context.Context, params core.RespondParams, iss string) error
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	client      AuthAPI
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(client AuthAPI, authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		client:      client,
		authService: authService,
	}
}

// Request starts a new auth request
func (h *AuthHandlers) Request(c *gin.Context) {
	var req struct {
		core.RequestParams
		Topic string `json:"topic"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.client.Request(c.Request.Context(), req.RequestParams, &service.RequestOptions{Topic: req.Topic})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Pair joins a pairing URI received out of band
func (h *AuthHandlers) Pair(c *gin.Context) {
	var req struct {
		URI string `json:"uri" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	pairing, err := h.client.Pair(c.Request.Context(), req.URI)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pairing)
}

// Pending lists requests waiting for a signature, oldest first
func (h *AuthHandlers) Pending(c *gin.Context) {
	pending, err := h.client.GetPendingRequests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]core.PendingRequest, 0, len(pending))
	for _, p := range pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	c.JSON(http.StatusOK, gin.H{"requests": out})
}

// Message renders the text a wallet has to sign
func (h *AuthHandlers) Message(c *gin.Context) {
	var req struct {
		Payload core.CacaoRequestPayload `json:"payload"`
		Iss     string                   `json:"iss" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	message, err := h.client.FormatMessage(req.Payload, req.Iss)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Respond answers a pending request with a signature or an error
func (h *AuthHandlers) Respond(c *gin.Context) {
	var req struct {
		core.RespondParams
		Iss string `json:"iss"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.client.Respond(c.Request.Context(), req.RespondParams, req.Iss); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": req.ID})
}

// Session exchanges a completed request for an access token
func (h *AuthHandlers) Session(c *gin.Context) {
	var req struct {
		ID uint64 `json:"id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	accessToken, session, err := h.authService.Exchange(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int64(session.AccessExpiry.Sub(session.IssuedAt).Seconds()),
		"address":      session.Address,
		"chain_id":     session.ChainID,
	})
}

// Me returns information about the authenticated wallet
func (h *AuthHandlers) Me(c *gin.Context) {
	// Session is set by the auth middleware
	value, exists := c.Get(sessionKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}
	session := value.(*core.Session)

	c.JSON(http.StatusOK, gin.H{
		"address":    session.Address,
		"chain_id":   session.ChainID,
		"request_id": session.RequestID,
		"expires_at": session.AccessExpiry,
	})
}

// writeError maps domain errors to status codes
func writeError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrMissingOrInvalid),
		errors.Is(err, core.ErrInvalidIssuer),
		errors.Is(err, core.ErrInvalidURI),
		errors.Is(err, core.ErrUnknownSignatureType):
		statusCode = http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidRespond),
		errors.Is(err, core.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidSignature):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, core.ErrNotInitialized):
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{"error": err.Error()})
}
