package scrub

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretFromError_Redacts(t *testing.T) {
	base := errors.New("Get \"https://api.example.com/v1?api_key=sk-live-123\": dial tcp: timeout")
	scrubbed := SecretFromError(base, "sk-live-123")

	assert.NotContains(t, scrubbed.Error(), "sk-live-123")
	assert.Contains(t, scrubbed.Error(), "[REDACTED]")
}

func TestSecretFromError_PreservesChain(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := fmt.Errorf("request failed with key abc123: %w", sentinel)

	scrubbed := SecretFromError(wrapped, "abc123")
	assert.ErrorIs(t, scrubbed, sentinel)
}

func TestSecretFromError_NoMatchReturnsSame(t *testing.T) {
	err := errors.New("plain failure")
	assert.Same(t, err, SecretFromError(err, "missing"))
	assert.Same(t, err, SecretFromError(err, ""))
	require.NoError(t, SecretFromError(nil, "whatever"))
}

func TestURL_RedactsCredentialParams(t *testing.T) {
	got := URL("https://api.example.com/v1/price?symbol=BTC&api_key=sk-live-123")

	assert.NotContains(t, got, "sk-live-123")
	assert.Contains(t, got, "symbol=BTC")
	assert.Contains(t, got, "api_key=%5BREDACTED%5D")
}

func TestURL_UntouchedWithoutSecrets(t *testing.T) {
	raw := "https://api.example.com/v1/price?symbol=BTC"
	assert.Equal(t, raw, URL(raw))
}
