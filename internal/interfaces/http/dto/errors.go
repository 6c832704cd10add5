package dto

import "net/http"

// Error codes exposed by the API
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeUpstream     = "TAX_SERVICE_ERROR"
)

// statusByCode maps domain error codes to HTTP status codes. Codes not
// listed default to 400: domain errors are caller-correctable by default.
var statusByCode = map[string]int{
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeUpstream:         http.StatusBadGateway,
	"INVALID_STATE":         http.StatusConflict,
	"MIXED_TAX_TYPES":       http.StatusUnprocessableEntity,
	"ADDRESS_NOT_VALIDATED": http.StatusUnprocessableEntity,
	"MISSING_ADDRESS":       http.StatusUnprocessableEntity,
	"MISSING_CUSTOMER_CODE": http.StatusUnprocessableEntity,
	"RATE_TEMPLATE_MISSING": http.StatusUnprocessableEntity,
	"LINE_NOT_FOUND":        http.StatusNotFound,
}

// GetHTTPStatus returns the HTTP status for an error code
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusBadRequest
}
