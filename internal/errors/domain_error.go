// Package errors defines the stable, code-carrying failures surfaced by the ledger.
package errors

import (
	stderrors "errors"
	"net/http"
)

// DomainError is a failure with a stable machine-readable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first DomainError in err's chain, or "INTERNAL".
func CodeOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps err to the status code the HTTP adapter should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidAmount, CodeInvalidOperation, CodeUnitMismatch:
		return http.StatusBadRequest
	case CodeAccountNotFound, CodeEntryNotFound:
		return http.StatusNotFound
	case CodeInsufficientFunds, CodeDuplicateRequest, CodeIdempotencyMismatch, CodeNegativeBalance:
		return http.StatusConflict
	case CodeContention:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
