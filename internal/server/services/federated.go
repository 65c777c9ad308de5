package services

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/logging"
	"github.com/mvrcrypto/customapi/internal/server/federation"
	"github.com/mvrcrypto/customapi/internal/server/models"
	"github.com/mvrcrypto/customapi/internal/server/repositories/repomanager"
)

// ProfileFetcher exchanges a provider access token for a normalized profile.
// Satisfied by federation.Connector.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, provider string, accessToken string) (*federation.Profile, error)
}

// FederatedService signs users in through external identity providers. A
// provider-vouched email either resolves to the existing account or
// provisions a new one without local credentials; either way the flow ends
// with a fresh access token.
type FederatedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *TokenIssuer
	fetcher     ProfileFetcher
	log         logging.Logger
	timeout     time.Duration
}

func NewFederatedService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenIssuer,
	fetcher ProfileFetcher, log logging.Logger, timeout time.Duration) *FederatedService {
	return &FederatedService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		fetcher:     fetcher,
		log:         log,
		timeout:     timeout,
	}
}

// Login resolves a provider access token to a local session. For an existing
// account the stored profile is kept as-is, even when the provider now
// reports a different name or picture. For a first-time email the account is
// created and the token issued inside one transaction, so a failed provision
// leaves no row behind.
func (s *FederatedService) Login(ctx context.Context, provider string, accessToken string) (*PrivateProfile, error) {
	profile, err := s.fetcher.FetchProfile(ctx, provider, accessToken)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var view *PrivateProfile

	err = dbx.WithTx(ctx, s.db, dbx.ReadCommitted, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByEmail(ctx, profile.Email)
		if err != nil {
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			user, err = s.provision(ctx, tx, profile)
			if err != nil {
				return err
			}
			s.log.Info(ctx, "federated account provisioned", "provider", provider, "email", strings.ToLower(profile.Email))
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

// provision creates a federated-only account from a provider profile: no
// salt, no hash, so the local login path stays closed to it.
func (s *FederatedService) provision(ctx context.Context, tx dbx.DBTX, profile *federation.Profile) (*models.User, error) {
	repo := s.repomanager.Users(tx)

	username, err := s.deriveUsername(ctx, tx, profile)
	if err != nil {
		return nil, err
	}

	return repo.Create(ctx, &models.User{
		Email:      profile.Email,
		Username:   username,
		PictureURI: profile.PictureURL,
	})
}

var usernameStrip = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// deriveUsername turns the provider display name into a valid username,
// falling back to the email local part and suffixing when the candidate is
// already in use.
func (s *FederatedService) deriveUsername(ctx context.Context, tx dbx.DBTX, profile *federation.Profile) (string, error) {
	candidate := usernameStrip.ReplaceAllString(profile.Name, "")
	if len(candidate) < 3 {
		local, _, _ := strings.Cut(profile.Email, "@")
		candidate = usernameStrip.ReplaceAllString(local, "")
	}
	if len(candidate) < 3 {
		candidate = "user"
	}
	if len(candidate) > 24 {
		candidate = candidate[:24]
	}

	taken, err := s.repomanager.Users(tx).UsernameTaken(ctx, candidate, "")
	if err != nil {
		return "", err
	}
	if taken {
		suffix, err := common.MakeRandHexString(3)
		if err != nil {
			return "", err
		}
		candidate = candidate + "_" + suffix
	}

	return candidate, nil
}
