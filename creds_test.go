package upstream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinlens/upstream"
)

func TestCredential_PrimaryWins(t *testing.T) {
	t.Setenv("BINANCE_API_SECRET", "new-secret")
	t.Setenv("BINANCE_SECRET", "legacy-secret")

	cred := upstream.NewCredential("binance-secret", "BINANCE_API_SECRET", "BINANCE_SECRET")

	value, ok := cred.Resolve()
	require.True(t, ok)
	assert.Equal(t, "new-secret", value)
}

func TestCredential_LegacyAliasFallback(t *testing.T) {
	t.Setenv("BINANCE_SECRET", "legacy-secret")

	value, ok := upstream.LookupAPIKey("BINANCE_API_SECRET_UNSET", "BINANCE_SECRET")
	require.True(t, ok)
	assert.Equal(t, "legacy-secret", value)
}

func TestCredential_AllAbsent(t *testing.T) {
	value, ok := upstream.LookupAPIKey("COINLENS_NO_SUCH_VAR", "COINLENS_NO_SUCH_VAR_EITHER")
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestCredential_EmptyValueSkipped(t *testing.T) {
	t.Setenv("COINLENS_EMPTY_KEY", "")
	t.Setenv("COINLENS_ALIAS_KEY", "from-alias")

	value, ok := upstream.LookupAPIKey("COINLENS_EMPTY_KEY", "COINLENS_ALIAS_KEY")
	require.True(t, ok)
	assert.Equal(t, "from-alias", value)
}
