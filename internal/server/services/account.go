package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/cryptox"
	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/logging"
	"github.com/mvrcrypto/customapi/internal/server/models"
	"github.com/mvrcrypto/customapi/internal/server/repositories/repomanager"
	"github.com/mvrcrypto/customapi/internal/server/repositories/users"
	"github.com/mvrcrypto/customapi/internal/server/validation"
)

// PictureResolver maps a picture reference (external URI or uploaded-file
// storage key) to a servable URI.
type PictureResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// AccountService implements the account lifecycle workflows. Every workflow
// that both reads and writes runs inside one read-committed transaction, so
// its availability checks and its writes see a single consistent snapshot.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenIssuer
	pictures    PictureResolver
	log         logging.Logger
	timeout     time.Duration
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenIssuer,
	pictures PictureResolver, log logging.Logger, timeout time.Duration) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		pictures:    pictures,
		log:         log,
		timeout:     timeout,
	}
}

// RegisterRequest carries the registration fields. Pointers distinguish
// "absent" from "present but empty". Email is required; the rest is optional.
// An account registered without a password has no local credentials and can
// only be entered through federated login.
type RegisterRequest struct {
	Email    *string
	Username *string
	Password *string
	Picture  *string
}

// UpdateRequest is a partial profile update: nil fields are left untouched.
// A password change requires both OldPassword and NewPassword.
type UpdateRequest struct {
	Email       *string
	Username    *string
	Picture     *string
	OldPassword *string
	NewPassword *string
}

func (s *AccountService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// Register creates an account and issues its first access token.
// Availability of email and username is re-checked inside the transaction;
// the case-insensitive unique index on email is the backstop for races the
// check cannot see.
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*PrivateProfile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if errs := validation.Check(ctx,
		validation.Rule{Field: "email", Value: req.Email, Required: true, Checks: []validation.Predicate{validation.Email}},
		validation.Rule{Field: "username", Value: req.Username, Checks: []validation.Predicate{validation.Username}},
		validation.Rule{Field: "password", Value: req.Password, Checks: []validation.Predicate{validation.NonEmpty}},
		validation.Rule{Field: "picture", Value: req.Picture, Checks: []validation.Predicate{validation.PictureRef}},
	); errs != nil {
		return nil, validation.Errors(errs)
	}

	var view *PrivateProfile

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		taken, err := repo.EmailTaken(ctx, *req.Email, "")
		if err != nil {
			return err
		}
		if taken {
			return common.ErrorTaken
		}

		user := &models.User{Email: *req.Email}

		if req.Username != nil {
			taken, err := repo.UsernameTaken(ctx, *req.Username, "")
			if err != nil {
				return err
			}
			if taken {
				return common.ErrorTaken
			}
			user.Username = *req.Username
		}

		if req.Picture != nil {
			uri, err := s.pictures.Resolve(ctx, *req.Picture)
			if err != nil {
				return err
			}
			user.PictureURI = uri
		}

		if req.Password != nil {
			password := []byte(*req.Password)
			defer common.WipeByteArray(password)
			user.Salt = cryptox.GenerateSalt()
			user.PasswordHash = cryptox.HashPassword(password, user.Salt)
			user.HashVersion = cryptox.HashVersion
		}

		created, err := repo.Create(ctx, user)
		if err != nil {
			return err
		}

		token, err := s.tokens.Issue(ctx, tx, created.ID)
		if err != nil {
			return err
		}

		view = PrivateView(created, token)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "account registered", "email", strings.ToLower(*req.Email))
	return view, nil
}

// Login verifies local credentials and issues a fresh access token, replacing
// any previous one. Unknown email, wrong password, and federated-only account
// are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*PrivateProfile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if errs := validation.Check(ctx,
		validation.Rule{Field: "email", Value: &email, Required: true, Checks: []validation.Predicate{validation.Email}},
		validation.Rule{Field: "password", Value: &password, Required: true, Checks: []validation.Predicate{validation.NonEmpty}},
	); errs != nil {
		return nil, validation.Errors(errs)
	}

	var view *PrivateProfile

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				// burn a hash so an unknown email costs as much as a
				// wrong password
				cryptox.VerifyPassword([]byte(password), cryptox.GenerateSalt(), nil)
				return common.ErrorUnauthorized
			}
			return err
		}

		if user.Federated() {
			return common.ErrorUnauthorized
		}
		if !cryptox.VerifyPasswordVersion([]byte(password), user.Salt, user.PasswordHash, user.HashVersion) {
			return common.ErrorUnauthorized
		}

		token, err := s.tokens.Issue(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		view = PrivateView(user, token)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

// Update applies a partial profile update for the authenticated user. Only
// supplied fields are validated and written. A password change that fails the
// old-password check does not fail the update: the response carries
// passwordUpdate=false and the stored credentials stay as they were.
func (s *AccountService) Update(ctx context.Context, userID string, req *UpdateRequest) (*PrivateProfile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if errs := validation.Check(ctx,
		validation.Rule{Field: "email", Value: req.Email, Checks: []validation.Predicate{validation.Email}},
		validation.Rule{Field: "username", Value: req.Username, Checks: []validation.Predicate{validation.Username}},
		validation.Rule{Field: "password", Value: req.NewPassword, Checks: []validation.Predicate{validation.NonEmpty}},
		validation.Rule{Field: "picture", Value: req.Picture, Checks: []validation.Predicate{validation.PictureRef}},
	); errs != nil {
		return nil, validation.Errors(errs)
	}

	var view *PrivateProfile

	err := dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		patch := &users.Patch{}

		if req.Email != nil {
			taken, err := repo.EmailTaken(ctx, *req.Email, userID)
			if err != nil {
				return err
			}
			if taken {
				return common.ErrorTaken
			}
			lowered := strings.ToLower(*req.Email)
			patch.Email = &lowered
			user.Email = lowered
		}

		if req.Username != nil {
			taken, err := repo.UsernameTaken(ctx, *req.Username, userID)
			if err != nil {
				return err
			}
			if taken {
				return common.ErrorTaken
			}
			patch.Username = req.Username
			user.Username = *req.Username
		}

		if req.Picture != nil {
			uri, err := s.pictures.Resolve(ctx, *req.Picture)
			if err != nil {
				return err
			}
			patch.PictureURI = &uri
			user.PictureURI = uri
		}

		var passwordUpdate *bool
		if req.NewPassword != nil {
			changed := s.changePassword(user, req, patch)
			passwordUpdate = &changed
		}

		if err := repo.Update(ctx, userID, patch); err != nil {
			return err
		}

		view = PrivateView(user, "")
		view.PasswordUpdate = passwordUpdate
		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

// changePassword attaches new credentials to patch when the old password
// verifies. Federated-only accounts have no password to verify against, so
// the change is always refused for them.
func (s *AccountService) changePassword(user *models.User, req *UpdateRequest, patch *users.Patch) bool {
	if user.Federated() || req.OldPassword == nil {
		return false
	}
	if !cryptox.VerifyPasswordVersion([]byte(*req.OldPassword), user.Salt, user.PasswordHash, user.HashVersion) {
		return false
	}

	password := []byte(*req.NewPassword)
	defer common.WipeByteArray(password)

	patch.SetCredentials = true
	patch.Salt = cryptox.GenerateSalt()
	patch.PasswordHash = cryptox.HashPassword(password, patch.Salt)
	patch.HashVersion = cryptox.HashVersion
	return true
}

// Logout revokes the user's access token. Logging out with no live token
// still succeeds.
func (s *AccountService) Logout(ctx context.Context, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.tokens.Revoke(ctx, s.db, userID)
}

// Delete removes the account after re-verifying the password. Token rows go
// with it through the foreign-key cascade. Federated-only accounts cannot
// pass the password check and are refused.
func (s *AccountService) Delete(ctx context.Context, userID string, password string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByID(ctx, userID)
		if err != nil {
			return err
		}

		if user.Federated() {
			return common.ErrorUnauthorized
		}
		if !cryptox.VerifyPasswordVersion([]byte(password), user.Salt, user.PasswordHash, user.HashVersion) {
			return common.ErrorUnauthorized
		}

		return repo.Delete(ctx, userID)
	})
}

// Authenticate resolves a bearer token to the owning user id, for use by the
// embedding request middleware. Expired and unknown tokens both fail with
// common.ErrorNotFound.
func (s *AccountService) Authenticate(ctx context.Context, token string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.tokens.Lookup(ctx, s.db, token)
}

// CheckEmail reports whether an email can still be registered: nil when
// available, common.ErrorTaken when not. Unlike login, the probe path
// deliberately reveals existence.
func (s *AccountService) CheckEmail(ctx context.Context, email string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if errs := validation.Check(ctx,
		validation.Rule{Field: "email", Value: &email, Required: true, Checks: []validation.Predicate{validation.Email}},
	); errs != nil {
		return validation.Errors(errs)
	}

	taken, err := s.repomanager.Users(s.db).EmailTaken(ctx, email, "")
	if err != nil {
		return err
	}
	if taken {
		return common.ErrorTaken
	}
	return nil
}

// CheckUsername is the username counterpart of CheckEmail.
func (s *AccountService) CheckUsername(ctx context.Context, username string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if errs := validation.Check(ctx,
		validation.Rule{Field: "username", Value: &username, Required: true, Checks: []validation.Predicate{validation.Username}},
	); errs != nil {
		return validation.Errors(errs)
	}

	taken, err := s.repomanager.Users(s.db).UsernameTaken(ctx, username, "")
	if err != nil {
		return err
	}
	if taken {
		return common.ErrorTaken
	}
	return nil
}
