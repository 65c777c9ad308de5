package models

import "time"

// Token is an opaque bearer credential. At most one live row exists per user:
// issuing a new token upserts over the previous one. Expiry is enforced only
// at lookup time; expired rows linger until overwritten or revoked.
type Token struct {
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
