package internal

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// roomCodeAlphabet excludes characters that are easy to confuse when read
// aloud or dictated over voice: I, O, 0, 1.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomCodeLength = 6

// maxRoomCodeAttempts bounds how many times the store retries generating a
// room code before giving up with an internal error (spec: collision with a
// live room regenerates; give up after a bounded number of attempts).
const maxRoomCodeAttempts = 8

// NewPlayerID returns an opaque player identifier with at least 128 bits of
// entropy.
func NewPlayerID() string {
	return "player_" + uuid.NewString()
}

// NewRoomID returns an opaque room identifier with at least 128 bits of
// entropy.
func NewRoomID() string {
	return "room_" + uuid.NewString()
}

// NewRoundID returns an opaque round identifier, unique within a room's
// lifetime.
func NewRoundID() string {
	return "round_" + uuid.NewString()
}

// NewPromptID returns an opaque prompt identifier.
func NewPromptID() string {
	return "prompt_" + uuid.NewString()
}

// NewRoomCode returns a 6-character room code drawn uniformly from
// roomCodeAlphabet.
func NewRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	idx := make([]byte, roomCodeLength)
	if _, err := rand.Read(idx); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i, v := range idx {
		b[i] = roomCodeAlphabet[int(v)%len(roomCodeAlphabet)]
	}
	return string(b), nil
}

// NewToken returns a cryptographically random, hex-encoded secret with at
// least 128 bits of entropy, suitable for host_token / player_token /
// share_token.
func NewToken() (string, error) {
	b := make([]byte, 20) // 160 bits
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokensEqual compares two secrets in constant time.
func TokensEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
