package internal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waustin14/storyfill/internal"
)

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := internal.NewRoomCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.NotContains(t, "IO01", string(r), "room code must avoid ambiguous characters")
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 150, "room codes should rarely collide across 200 draws")
}

func TestNewToken(t *testing.T) {
	a, err := internal.NewToken()
	require.NoError(t, err)
	b, err := internal.NewToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 40) // 160 bits, hex-encoded
}

func TestTokensEqual(t *testing.T) {
	tok, err := internal.NewToken()
	require.NoError(t, err)

	assert.True(t, internal.TokensEqual(tok, tok))
	assert.False(t, internal.TokensEqual(tok, tok+"x"))
	assert.False(t, internal.TokensEqual("", tok))
}

func TestNewIDsAreUniqueAndPrefixed(t *testing.T) {
	assert.Contains(t, internal.NewPlayerID(), "player_")
	assert.Contains(t, internal.NewRoomID(), "room_")
	assert.Contains(t, internal.NewRoundID(), "round_")
	assert.Contains(t, internal.NewPromptID(), "prompt_")
	assert.NotEqual(t, internal.NewPlayerID(), internal.NewPlayerID())
}
