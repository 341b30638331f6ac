package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/linemk/storefront-orders/internal/lib/apperr"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := apperr.Conflict(apperr.CodeEmptyCart, "cart is empty")
	wrapped := fmt.Errorf("service.Checkout: %w", base)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(wrapped))
	assert.Equal(t, apperr.CodeEmptyCart, apperr.CodeOf(wrapped))

	e, ok := apperr.As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "cart is empty", e.Message)
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
	assert.Equal(t, apperr.Code(""), apperr.CodeOf(err))
}

func TestTransient_Unwrap(t *testing.T) {
	cause := errors.New("lock timeout")
	err := apperr.Transient(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "lock timeout")
	assert.Equal(t, "transient", err.Kind.String())
}
