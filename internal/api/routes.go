package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/internal/auth"
	"github.com/haniipp/cybersentient/internal/websocket"
	"github.com/haniipp/cybersentient/repository"
	"github.com/haniipp/cybersentient/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	operatorRepo repository.OperatorRepository,
	conversations *usecase.ConversationService,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "cybersentient-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/operators/login", func(c echo.Context) error {
		return operatorLogin(c, operatorRepo, logger)
	})

	v1.GET("/personas", getPersonas)
	v1.GET("/tools", getTools)

	v1.GET("/conversations/:id/export", func(c echo.Context) error {
		return exportConversation(c, conversations, logger)
	})

	v1.POST("/attachments", func(c echo.Context) error {
		return validateAttachment(c, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func operatorLogin(c echo.Context, operatorRepo repository.OperatorRepository, logger *zap.Logger) error {
	var req OperatorLoginRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind login request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.Callsign == "" || req.AccessKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Callsign and access key are required",
		})
	}

	operator, err := operatorRepo.ValidateOperator(req.Callsign, req.AccessKey)
	if err != nil {
		logger.Warn("Operator authentication failed",
			zap.String("callsign", req.Callsign),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid operator credentials",
		})
	}

	token, err := auth.GenerateOperatorToken(operator.ID, operator.Callsign)
	if err != nil {
		logger.Error("Failed to generate operator token",
			zap.String("operatorID", operator.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Operator authenticated",
		zap.String("operatorID", operator.ID),
		zap.String("callsign", operator.Callsign))

	return c.JSON(http.StatusOK, OperatorLoginResponse{
		Token:      token,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		OperatorID: operator.ID,
		Callsign:   operator.Callsign,
	})
}

func getPersonas(c echo.Context) error {
	providers := entities.Providers()
	personas := make([]string, len(providers))
	for i, p := range providers {
		personas[i] = string(p)
	}
	return c.JSON(http.StatusOK, PersonasResponse{Personas: personas})
}

func getTools(c echo.Context) error {
	tools := entities.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = string(t)
	}
	return c.JSON(http.StatusOK, ToolsResponse{Tools: names})
}

// exportConversation downloads the transcript as a plain-text log file.
func exportConversation(c echo.Context, conversations *usecase.ConversationService, logger *zap.Logger) error {
	id := c.Param("id")

	filename, report, err := conversations.Export(c.Request().Context(), id)
	if err != nil {
		logger.Warn("Export failed", zap.String("conversationID", id), zap.Error(err))
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Conversation not found",
		})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(report))
}

// validateAttachment checks an image data URL before the client attaches it
// to a submission, so oversized or malformed payloads fail fast.
func validateAttachment(c echo.Context, logger *zap.Logger) error {
	var req AttachmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	data, mimeType, err := usecase.DecodeDataURL(req.Image)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "malformed_data_url",
			Message: "Image must be a base64 data URL",
		})
	}

	return c.JSON(http.StatusOK, AttachmentResponse{
		MIMEType: mimeType,
		Bytes:    len(data),
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Extract JWT token from Authorization header only
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		// Browsers cannot set headers on WebSocket upgrades.
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "operator" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only operator tokens are allowed for WebSocket connections",
		})
	}

	if claims.OperatorID == "" {
		logger.Error("WebSocket connection rejected: missing operator ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Operator ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("operatorID", claims.OperatorID),
		zap.String("callsign", claims.Callsign))

	return websocket.HandleWebSocketWithAuth(hub, c, claims.OperatorID, logger)
}
