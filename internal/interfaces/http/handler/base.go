// Package handler implements the HTTP endpoints on top of the application
// services.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a2zsellr/backend/internal/domain/shared"
	"github.com/a2zsellr/backend/internal/infrastructure/logger"
	"github.com/a2zsellr/backend/internal/interfaces/http/dto"
	"github.com/a2zsellr/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.CodeBadRequest, message)
}

// Forbidden sends a 403 forbidden response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.CodeForbidden, message)
}

// BindError answers a failed ShouldBind call: per-field details for
// validation failures, a plain 400 for unreadable bodies.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.CodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	if details := middleware.ValidationDetails(err); details != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
			"Request validation failed", middleware.GetRequestID(c), details))
		return
	}
	if errors.Is(err, io.EOF) {
		h.Error(c, http.StatusBadRequest, dto.CodeInvalidJSON, "Request body is empty")
		return
	}
	h.Error(c, http.StatusBadRequest, dto.CodeInvalidJSON, "Request body is not valid JSON")
}

// HandleError maps err to a response. Domain errors keep their code and
// message; anything else is logged and reported as a 500 without detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		status := dto.GetHTTPStatus(domainErr.Code)
		message := domainErr.Message
		if status >= http.StatusInternalServerError {
			logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
			message = "An unexpected error occurred"
		}
		h.Error(c, status, domainErr.Code, message)
		return
	}

	logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.CodeInternal, "An unexpected error occurred")
}

// profileParam parses the :id path parameter and checks the caller may
// act on that profile. It writes the error response itself.
func (h *BaseHandler) profileParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "id must be a valid UUID")
		return uuid.Nil, false
	}
	claims := middleware.GetClaims(c)
	if claims == nil || !claims.CanAccessProfile(id) {
		h.Forbidden(c, "Not allowed to access this profile")
		return uuid.Nil, false
	}
	c.Request = c.Request.WithContext(logger.WithProfileID(c.Request.Context(), id.String()))
	return id, true
}

// intQuery reads an optional integer query parameter. It reports false
// and writes a 400 when the value is present but not a number.
func (h *BaseHandler) intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.BadRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}
