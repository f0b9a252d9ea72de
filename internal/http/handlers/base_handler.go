// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"valet/internal/modules/pricing"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// isValidScope allows location ids like "lot-12" or "sfo_terminal_2".
func isValidScope(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writePricingError maps the pricing error taxonomy onto status codes.
// Validation is checked first: a rejected config update wraps both
// ErrValidation and ErrConfig and is the caller's fault.
func writePricingError(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	var fe *pricing.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}
	switch {
	case errors.Is(err, pricing.ErrValidation):
		writeJSON(c, http.StatusBadRequest, resp)
	case errors.Is(err, pricing.ErrConfig):
		writeJSON(c, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, pricing.ErrQuoteNotFound):
		writeJSON(c, http.StatusNotFound, resp)
	case errors.Is(err, pricing.ErrConcurrencyConflict):
		c.Header("Retry-After", "1")
		writeJSON(c, http.StatusConflict, resp)
	case errors.Is(err, pricing.ErrTransient):
		c.Header("Retry-After", "1")
		writeError(c, http.StatusServiceUnavailable, "pricing temporarily unavailable")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
