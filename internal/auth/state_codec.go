package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/linkgate/internal/models"
)

// maxClockSkew bounds how far in the future a token's issue time may be
const maxClockSkew = time.Minute

var tokenEncoding = base64.RawURLEncoding.Strict()

// statePayload is the canonical wire form of a LinkState.
// Field order is fixed by the struct, so the encoding is deterministic.
type statePayload struct {
	DiscordID     string `json:"d"`
	PlayerID      string `json:"p"`
	Username      string `json:"u"`
	IssuedAt      int64  `json:"t"`
	SecretVersion string `json:"v"`
}

// StateCodec signs and verifies state tokens carried across the provider redirect.
// Tokens need no server-side storage.
type StateCodec struct {
	secret  []byte
	version string
}

// NewStateCodec creates a codec for the given secret and secret version
func NewStateCodec(secret []byte, version string) *StateCodec {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &StateCodec{
		secret:  key,
		version: version,
	}
}

// Version returns the secret version embedded into new tokens
func (c *StateCodec) Version() string {
	return c.version
}

// Encode serializes and signs a state. The configured version replaces state.SecretVersion.
func (c *StateCodec) Encode(state models.LinkState) (string, error) {
	payload, err := json.Marshal(statePayload{
		DiscordID:     state.DiscordID,
		PlayerID:      state.PlayerID.String(),
		Username:      state.Username,
		IssuedAt:      state.IssuedAt.UnixMilli(),
		SecretVersion: c.version,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}

	return tokenEncoding.EncodeToString(payload) + "." + tokenEncoding.EncodeToString(c.sign(payload)), nil
}

// Decode verifies a token and returns its state. It reports false for any malformed,
// tampered or foreign-version token and never returns an error.
func (c *StateCodec) Decode(token string) (models.LinkState, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return models.LinkState{}, false
	}

	payload, err := tokenEncoding.DecodeString(parts[0])
	if err != nil {
		return models.LinkState{}, false
	}
	signature, err := tokenEncoding.DecodeString(parts[1])
	if err != nil {
		return models.LinkState{}, false
	}

	if !hmac.Equal(c.sign(payload), signature) {
		return models.LinkState{}, false
	}

	var p statePayload
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return models.LinkState{}, false
	}
	if p.SecretVersion != c.version {
		return models.LinkState{}, false
	}

	playerID, err := uuid.Parse(p.PlayerID)
	if err != nil || playerID == uuid.Nil {
		return models.LinkState{}, false
	}

	return models.LinkState{
		DiscordID:     p.DiscordID,
		PlayerID:      playerID,
		Username:      p.Username,
		IssuedAt:      time.UnixMilli(p.IssuedAt).UTC(),
		SecretVersion: p.SecretVersion,
	}, true
}

// Fresh reports whether a decoded state is younger than ttl at now
func Fresh(state models.LinkState, now time.Time, ttl time.Duration) bool {
	if state.IssuedAt.After(now.Add(maxClockSkew)) {
		return false
	}
	return now.Sub(state.IssuedAt) <= ttl
}

func (c *StateCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
