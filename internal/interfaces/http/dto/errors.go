package dto

import (
	"net/http"
	"strings"
)

// Codes produced by the HTTP layer itself. Domain errors keep the code
// they were created with.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidJSON     = "INVALID_JSON"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRequestTooLarge = "REQUEST_TOO_LARGE"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// codeHTTPStatus holds the codes whose status is not derived from their
// prefix or suffix
var codeHTTPStatus = map[string]int{
	CodeBadRequest:            http.StatusBadRequest,
	CodeValidation:            http.StatusBadRequest,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeTokenExpired:          http.StatusUnauthorized,
	CodeForbidden:             http.StatusForbidden,
	CodeConflict:              http.StatusConflict,
	"ALREADY_EXISTS":          http.StatusConflict,
	"CONCURRENT_MODIFICATION": http.StatusConflict,
	"INVALID_STATE":           http.StatusConflict,
	"INVALID_TRANSITION":      http.StatusConflict,
	"NOT_ELIGIBLE":            http.StatusUnprocessableEntity,
	"RUN_IN_PROGRESS":         http.StatusConflict,
	"SCHEDULER_NOT_RUNNING":   http.StatusServiceUnavailable,
	CodeRequestTooLarge:       http.StatusRequestEntityTooLarge,
	CodeRateLimited:           http.StatusTooManyRequests,
	CodeUnavailable:           http.StatusServiceUnavailable,
	CodeInternal:              http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code. Codes ending in
// NOT_FOUND map to 404 and other INVALID_ codes to 400. Anything unknown
// is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := codeHTTPStatus[code]; ok {
		return status
	}
	switch {
	case strings.HasSuffix(code, "NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "INVALID_"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
