// Package errors holds the domain error codes shared by the services and
// the HTTP layer.
package errors

import "net/http"

// DomainError is a coded, client-safe failure.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

var statusByCode = map[string]int{
	"INVALID_AMOUNT":      http.StatusBadRequest,
	"INVALID_CURRENCY":    http.StatusBadRequest,
	"WALLET_NOT_FOUND":    http.StatusNotFound,
	"WALLET_EXISTS":       http.StatusConflict,
	"SAME_ACCOUNT":        http.StatusBadRequest,
	"CURRENCY_MISMATCH":   http.StatusBadRequest,
	"INSUFFICIENT_FUNDS":  http.StatusUnprocessableEntity,
	"UPSTREAM_ERROR":      http.StatusBadGateway,
	"UPSTREAM_TIMEOUT":    http.StatusGatewayTimeout,
	"STORAGE_CONFLICT":    http.StatusServiceUnavailable,
	"COMPENSATION_FAILED": http.StatusInternalServerError,
}

// HTTPStatus returns the response status for a domain error code.
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
