package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// errorBody is the envelope every failed request returns.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusByCode maps the domain error codes to HTTP statuses. Validation
// failures are the client's fault; contention and integrity breaches
// are ours.
var statusByCode = map[string]int{
	"VALIDATION_ERROR":           http.StatusBadRequest,
	"UNSUPPORTED_CURRENCY":       http.StatusBadRequest,
	"UNAUTHORIZED":               http.StatusUnauthorized,
	"WEBHOOK_SIGNATURE_INVALID":  http.StatusUnauthorized,
	"FORBIDDEN":                  http.StatusForbidden,
	"USER_SUSPENDED":             http.StatusForbidden,
	"USER_BANNED":                http.StatusForbidden,
	"HOLDING_NOT_OWNED":          http.StatusForbidden,
	"USER_NOT_FOUND":             http.StatusNotFound,
	"GIFT_NOT_FOUND":             http.StatusNotFound,
	"BOOM_NOT_FOUND":             http.StatusNotFound,
	"HOLDING_NOT_FOUND":          http.StatusNotFound,
	"PAYMENT_NOT_FOUND":          http.StatusNotFound,
	"INSUFFICIENT_REAL_FUNDS":    http.StatusPaymentRequired,
	"INSUFFICIENT_VIRTUAL_FUNDS": http.StatusPaymentRequired,
	"BOOM_UNAVAILABLE":           http.StatusConflict,
	"STOCK_EXHAUSTED":            http.StatusConflict,
	"HOLDING_NOT_TRANSFERABLE":   http.StatusConflict,
	"GIFT_INVALID_TRANSITION":    http.StatusConflict,
	"GIFT_DUPLICATE_RECENT":      http.StatusConflict,
	"PAYMENT_ALREADY_SETTLED":    http.StatusConflict,
	"GIFT_EXPIRED":               http.StatusGone,
	"RATE_LIMITED":               http.StatusTooManyRequests,
	"PROVIDER_ERROR":             http.StatusBadGateway,
	"PROVIDER_UNCONFIGURED":      http.StatusServiceUnavailable,
	"TRANSIENT_CONTENDED":        http.StatusServiceUnavailable,
	"INTEGRITY_ERROR":            http.StatusInternalServerError,
}

// splitCode extracts the CODE prefix from a "CODE: message" error
// string. Errors without a recognizable prefix surface as
// INTERNAL_ERROR without leaking their text.
func splitCode(err error) (code, message string) {
	text := err.Error()
	idx := strings.Index(text, ": ")
	if idx <= 0 {
		return "INTERNAL_ERROR", "internal error"
	}
	prefix := text[:idx]
	for _, r := range prefix {
		if (r < 'A' || r > 'Z') && r != '_' {
			return "INTERNAL_ERROR", "internal error"
		}
	}
	return prefix, text[idx+2:]
}

func writeError(w http.ResponseWriter, err error) {
	code, message := splitCode(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeErrorCode(w http.ResponseWriter, code, message string) {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding our own response shapes cannot fail in a way the client
	// can still be told about.
	_ = json.NewEncoder(w).Encode(body)
}
