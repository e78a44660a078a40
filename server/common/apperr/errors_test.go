package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorListsEverySetting(t *testing.T) {
	err := NewConfigError("Hamsa", "HAMSA_API_KEY", "HAMSA_SPEAKER")
	assert.Equal(t, "missing Hamsa settings: HAMSA_API_KEY, HAMSA_SPEAKER", err.Error())
	assert.True(t, IsConfig(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsProvider(err))
}

func TestProviderErrorMessages(t *testing.T) {
	status := NewProviderStatusError("Hamsa", "STT", 502, "bad gateway")
	assert.Equal(t, "Hamsa STT error 502: bad gateway", status.Error())

	cause := errors.New("connection refused")
	transport := NewProviderError("Qdrant", "search", cause)
	assert.Equal(t, "Qdrant search: connection refused", transport.Error())
	assert.ErrorIs(t, transport, cause)
	assert.True(t, IsProvider(fmt.Errorf("retrieve: %w", transport)))
}
