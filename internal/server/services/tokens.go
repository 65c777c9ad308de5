package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/server/repositories/repomanager"
)

// tokenBytes of randomness per access token; the hex form is twice as long.
const tokenBytes = 32

// TokenIssuer mints, resolves, and revokes the opaque bearer tokens. A user
// has at most one live token: issuing replaces the previous row, and an
// earlier token stops resolving the moment a later one is issued.
type TokenIssuer struct {
	repomanager repomanager.RepositoryManager
	validity    time.Duration
}

func NewTokenIssuer(m repomanager.RepositoryManager, validity time.Duration) *TokenIssuer {
	return &TokenIssuer{repomanager: m, validity: validity}
}

// Issue generates a fresh token for userID and upserts it over any existing
// row, returning the token string.
func (t *TokenIssuer) Issue(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("error generating token: %w", err)
	}
	if err := t.repomanager.Tokens(db).Upsert(ctx, userID, token, t.validity); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup resolves a token to its owning user id. Unknown and expired tokens
// are indistinguishable to the caller: both are common.ErrorNotFound. This is
// the only place expiry is enforced; expired rows otherwise linger until
// overwritten or revoked.
func (t *TokenIssuer) Lookup(ctx context.Context, db dbx.DBTX, token string) (string, error) {
	row, err := t.repomanager.Tokens(db).Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorNotFound
		}
		return "", err
	}
	if !row.Expires.After(time.Now()) {
		return "", common.ErrorNotFound
	}
	return row.UserID, nil
}

// Revoke deletes every token row for userID. Revoking a user with no tokens
// succeeds.
func (t *TokenIssuer) Revoke(ctx context.Context, db dbx.DBTX, userID string) error {
	return t.repomanager.Tokens(db).DeleteForUser(ctx, userID)
}
