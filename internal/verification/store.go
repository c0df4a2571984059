package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// ErrNotFound is returned by Consume for a token that was never issued or
// has already been consumed.
var ErrNotFound = errors.New("pending verification not found")

// PendingVerification correlates a started verification with its eventual
// OAuth callback. At most one live record exists per token; the record is
// removed by the first Consume bearing that token.
type PendingVerification struct {
	Token         string    `json:"token"`
	DiscordUserID string    `json:"discord_user_id"`
	GuildID       string    `json:"guild_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// PendingStore is the contract for correlation storage. Implementations
// must support concurrent Create/Consume without lost updates or double
// consumes.
type PendingStore interface {
	// Create stores a new pending verification and returns its opaque
	// token, used as the OAuth state parameter.
	Create(ctx context.Context, discordUserID, guildID string) (string, error)

	// Consume atomically removes and returns the record for the token.
	// A second call with the same token returns ErrNotFound.
	Consume(ctx context.Context, token string) (*PendingVerification, error)

	// Close releases any underlying connections.
	Close() error
}

// newToken returns a 256-bit random URL-safe token. Collision probability
// is negligible at this entropy, so no collision handling is done.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
