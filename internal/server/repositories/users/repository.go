package users

import (
	"context"

	"github.com/mvrcrypto/customapi/internal/server/models"
)

// Patch is an explicit per-field update: a nil pointer means "not supplied"
// and the column is left untouched, so clearing a field and omitting it are
// both representable.
type Patch struct {
	Email      *string
	Username   *string
	PictureURI *string

	// Credential fields travel together; SetCredentials toggles them.
	SetCredentials bool
	Salt           []byte
	PasswordHash   []byte
	HashVersion    int
}

// Repository is the store adapter surface for account rows.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID string) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeID string) (bool, error)
	Update(ctx context.Context, id string, patch *Patch) error
	Delete(ctx context.Context, id string) error
}
