package apierr

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/pagelens/backend/internal/fetchguard"
	"github.com/onnwee/pagelens/backend/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// FETCH_ - upstream fetch errors
	ErrFetchTimeout     ErrorCode = "FETCH_TIMEOUT"
	ErrFetchCircuitOpen ErrorCode = "FETCH_CIRCUIT_OPEN"
	ErrFetchNetwork     ErrorCode = "FETCH_NETWORK"
	ErrFetchRejected    ErrorCode = "FETCH_REJECTED"

	// VALIDATION_ - request validation errors
	ErrValidationInvalidURL  ErrorCode = "VALIDATION_INVALID_URL"
	ErrValidationInvalidJSON ErrorCode = "VALIDATION_INVALID_JSON"

	// AUTH_ - admin endpoint authentication
	ErrAuthMissing ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid ErrorCode = "AUTH_INVALID"

	// RATE_LIMIT_ - rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"

	// SYSTEM_ - system and server errors
	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// WriteErrorWithContext writes an error carrying the request ID from the
// request context.
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID, ok := r.Context().Value(logger.RequestIDKey).(string); ok && reqID != "" {
		err.RequestID = reqID
	}
	WriteError(w, err)
}

// FromFetchError maps a typed fetch failure to its API error. The caller
// sees the failure kind rather than a generic 500, so degraded responses
// stay honest.
func FromFetchError(ferr *fetchguard.FetchError) *Error {
	switch ferr.Kind {
	case fetchguard.KindTimeout:
		return New(ErrFetchTimeout, "Upstream fetch timed out", http.StatusGatewayTimeout)
	case fetchguard.KindCircuitOpen:
		return New(ErrFetchCircuitOpen, "Upstream temporarily unavailable (circuit open)", http.StatusServiceUnavailable)
	case fetchguard.KindNetwork:
		return New(ErrFetchNetwork, "Upstream fetch failed", http.StatusBadGateway)
	case fetchguard.KindRejected:
		if ferr.StatusCode != 0 {
			return New(ErrFetchRejected, "Upstream returned an error response", http.StatusBadGateway).
				WithDetails(map[string]interface{}{"upstream_status": ferr.StatusCode})
		}
		return New(ErrValidationInvalidURL, "URL was rejected", http.StatusBadRequest)
	default:
		return SystemInternal("")
	}
}

// Helper constructors for common errors

// InvalidURL creates a URL validation error
func InvalidURL(message string) *Error {
	if message == "" {
		message = "Invalid or missing URL"
	}
	return New(ErrValidationInvalidURL, message, http.StatusBadRequest)
}

// InvalidJSON creates a request body validation error
func InvalidJSON(message string) *Error {
	if message == "" {
		message = "Invalid JSON request body"
	}
	return New(ErrValidationInvalidJSON, message, http.StatusBadRequest)
}

// AuthMissing creates an authentication missing error
func AuthMissing() *Error {
	return New(ErrAuthMissing, "Authentication required", http.StatusUnauthorized)
}

// AuthInvalid creates an invalid authentication error
func AuthInvalid() *Error {
	return New(ErrAuthInvalid, "Invalid authentication credentials", http.StatusUnauthorized)
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests", http.StatusTooManyRequests)
}

// RateLimitIP creates a per-IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded for your address", http.StatusTooManyRequests)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}
