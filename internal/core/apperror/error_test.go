package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsAppError_Wrapped(t *testing.T) {
	base := NewAlreadyLinked("INV-123")
	wrapped := fmt.Errorf("link invoice: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeAlreadyLinked, appErr.Code)
	assert.Equal(t, "INV-123", appErr.Details["external_invoice_id"])

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewSaleLocked("s-1", "locked"))
	assert.True(t, HasCode(err, CodeSaleLocked))
	assert.False(t, HasCode(err, CodeNotLinked))
	assert.False(t, HasCode(nil, CodeSaleLocked))
}

func TestGetHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NewValidation("bad"), http.StatusBadRequest},
		{NewNotFound("sale", "x"), http.StatusNotFound},
		{NewForbidden("no"), http.StatusForbidden},
		{NewUnauthorized("no"), http.StatusUnauthorized},
		{NewConcurrentModification("sale", "x"), http.StatusConflict},
		{NewGatewayUnavailable("down"), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, GetHTTPStatus(tc.err), tc.err)
	}
}

func TestIsGatewayAuth(t *testing.T) {
	assert.True(t, IsGatewayAuth(NewGatewayAuth("expired")))
	assert.False(t, IsGatewayAuth(NewGatewayUnavailable("down")))
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("row locked")
	err := NewInternal(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestWithDetailAccumulates(t *testing.T) {
	err := NewValidation("invalid").
		WithDetail("field", "brand").
		WithDetail("value", "")
	assert.Len(t, err.Details, 2)
}
