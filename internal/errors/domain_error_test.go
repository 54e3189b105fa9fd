package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("withdraw: %w", ErrInsufficientFunds)

	assert.True(t, stderrors.Is(wrapped, ErrInsufficientFunds))
	assert.True(t, stderrors.Is(wrapped, &DomainError{Code: CodeInsufficientFunds}))
	assert.False(t, stderrors.Is(wrapped, ErrContention))
	assert.Equal(t, CodeInsufficientFunds, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrInvalidOperation, http.StatusBadRequest},
		{ErrAccountNotFound, http.StatusNotFound},
		{ErrInsufficientFunds, http.StatusConflict},
		{ErrDuplicateRequest, http.StatusConflict},
		{fmt.Errorf("tx: %w", ErrContention), http.StatusServiceUnavailable},
		{stderrors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(CodeOf(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
