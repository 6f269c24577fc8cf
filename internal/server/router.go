package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/action"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/actionerr"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/audit"
	"github.com/MarcoPoloResearchLab/okta-create-user/internal/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerContextKey = "okta_create_user_caller"

var (
	errMissingAction          = errors.New("action dependency required")
	errMissingCallerValidator = errors.New("caller validator dependency required")
	errInvalidAuthorization   = errors.New("authorization header missing or invalid")
)

// Invoker is the invocation contract the router exposes.
type Invoker interface {
	Invoke(ctx context.Context, params action.Params, invocation action.Context) (action.Result, error)
	HandleError(ctx context.Context, params action.Params, err error) error
	Halt(ctx context.Context, params action.Params, reason string) action.HaltResult
}

// CallerValidator authenticates the orchestrator.
type CallerValidator interface {
	ValidateToken(token string) (string, error)
}

// JournalReader lists recorded invocations.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Dependencies wires the router. Journal is optional.
type Dependencies struct {
	Action          Invoker
	CallerValidator CallerValidator
	Journal         JournalReader
	AllowedOrigins  []string
	Logger          *zap.Logger
}

// NewHTTPHandler builds the gin router serving the action over HTTP.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Action == nil {
		return nil, errMissingAction
	}
	if deps.CallerValidator == nil {
		return nil, errMissingCallerValidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(corsMiddleware(deps.AllowedOrigins))
	}

	handler := &httpHandler{
		action:  deps.Action,
		callers: deps.CallerValidator,
		journal: deps.Journal,
		logger:  logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/v1")
	protected.Use(handler.authorizeRequest)
	protected.POST("/invoke", handler.handleInvoke)
	protected.POST("/halt", handler.handleHalt)
	if deps.Journal != nil {
		protected.GET("/invocations", handler.handleInvocations)
	}

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

type httpHandler struct {
	action  Invoker
	callers CallerValidator
	journal JournalReader
	logger  *zap.Logger
}

type invokeRequestPayload struct {
	Params  action.Params  `json:"params"`
	Context action.Context `json:"context"`
}

type haltRequestPayload struct {
	Params action.Params `json:"params"`
	Reason string        `json:"reason"`
}

type errorPayload struct {
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Retryable  bool            `json:"retryable"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleInvoke(c *gin.Context) {
	var request invokeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.action.Invoke(ctx, request.Params, request.Context)
	if err != nil {
		err = h.action.HandleError(ctx, request.Params, err)
		status, payload := renderError(err)
		c.JSON(status, gin.H{"error": payload})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleHalt(c *gin.Context) {
	var request haltRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	c.JSON(http.StatusOK, h.action.Halt(c.Request.Context(), request.Params, request.Reason))
}

func (h *httpHandler) handleInvocations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}
	entries, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list invocations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invocations": entries})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	caller, err := h.callers.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredCallerToken) {
			h.logger.Info("caller token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("caller token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(callerContextKey, caller)
	c.Next()
}

func renderError(err error) (int, errorPayload) {
	payload := errorPayload{Kind: "Error", Message: err.Error(), Retryable: actionerr.IsRetryable(err)}
	var actionErr *actionerr.Error
	if !errors.As(err, &actionErr) {
		return http.StatusInternalServerError, payload
	}
	payload.Kind = actionErr.KindName()
	payload.StatusCode = actionErr.StatusCode
	payload.Body = actionErr.Body

	switch {
	case errors.Is(err, actionerr.ErrMissingParameter),
		errors.Is(err, actionerr.ErrMissingAddress),
		errors.Is(err, actionerr.ErrInvalidAttributes),
		errors.Is(err, actionerr.ErrAuthConfiguration):
		return http.StatusBadRequest, payload
	case errors.Is(err, actionerr.ErrIdentityConflict):
		return http.StatusConflict, payload
	default:
		return http.StatusBadGateway, payload
	}
}
