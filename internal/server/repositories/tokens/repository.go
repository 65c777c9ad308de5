package tokens

import (
	"context"
	"time"

	"github.com/mvrcrypto/customapi/internal/server/models"
)

// Repository is the store adapter surface for bearer-token rows.
type Repository interface {
	// Upsert replaces the single token row for userID with the new token
	// and an expiry of now+validity.
	Upsert(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns the row for the given token string, expired or not.
	// Expiry is the caller's concern; the store never purges proactively.
	Find(ctx context.Context, token string) (*models.Token, error)

	// DeleteForUser removes the user's token rows. Idempotent.
	DeleteForUser(ctx context.Context, userID string) error
}
