package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := NotFound("product %d not found", 7)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "product 7 not found", err.Error())
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock("only 2 left"))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
}

func TestPersistenceDoesNotRewrapDomainErrors(t *testing.T) {
	domainErr := InvalidTransition("cancelled -> cancelled")
	assert.Same(t, domainErr, Persistence("update order", domainErr))

	storeErr := errors.New("disk full")
	wrapped := Persistence("update order", storeErr)
	assert.True(t, errors.Is(wrapped, ErrPersistence))
	assert.True(t, errors.Is(wrapped, storeErr))
	assert.Nil(t, Persistence("noop", nil))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindPersistence, KindOf(errors.New("boom")))
}
