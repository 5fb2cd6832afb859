package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/studioledger/internal/apperr"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrMissingStudio  = errors.New("missing_studio")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrMissingStudio):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Code:    "missing_studio",
			Message: "studio context required",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    "invalid_request",
			Message: "invalid request",
		}
	}

	code := apperr.Code(err)
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Code:    code,
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: "invalid value",
			}},
		}
	case apperr.ErrInvalidAmount:
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_amount",
			Code:    code,
			Message: "invalid amount",
		}
	case apperr.ErrNotFound:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: "not found",
		}
	case apperr.ErrConflict:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    code,
			Message: "conflict",
		}
	case apperr.ErrConfiguration:
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "configuration_error",
			Code:    code,
			Message: "service is not configured",
		}
	case apperr.ErrNotSupported:
		return http.StatusNotImplemented, errorPayload{
			Type:    "not_supported",
			Code:    code,
			Message: "not supported",
		}
	case apperr.ErrExternal:
		return http.StatusBadGateway, errorPayload{
			Type:    "external_service_error",
			Message: "upstream service failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the response type and code logged for a request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func validationErrorField(code string) string {
	switch {
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.HasSuffix(code, "_required"):
		return strings.TrimSuffix(code, "_required")
	default:
		return ""
	}
}
