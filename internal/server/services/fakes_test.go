package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/dbx"
	"github.com/mvrcrypto/customapi/internal/logging"
	"github.com/mvrcrypto/customapi/internal/server/models"
	tokensrepo "github.com/mvrcrypto/customapi/internal/server/repositories/tokens"
	usersrepo "github.com/mvrcrypto/customapi/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func strPtr(s string) *string { return &s }

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// --- fake repositories ---

type fakeUsersRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
	getErr  error

	createOut   *models.User
	createErr   error
	createdWith *models.User

	emailTaken    bool
	usernameTaken bool
	takenErr      error
	lastExclude   string

	updateErr error
	updatedID string
	lastPatch *usersrepo.Patch

	deleteErr error
	deletedID string
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.createdWith = u
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *u
	out.ID = "u1"
	out.Email = strings.ToLower(u.Email)
	return &out, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byEmail[strings.ToLower(email)]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) EmailTaken(ctx context.Context, email string, excludeID string) (bool, error) {
	f.lastExclude = excludeID
	return f.emailTaken, f.takenErr
}

func (f *fakeUsersRepo) UsernameTaken(ctx context.Context, username string, excludeID string) (bool, error) {
	f.lastExclude = excludeID
	return f.usernameTaken, f.takenErr
}

func (f *fakeUsersRepo) Update(ctx context.Context, id string, patch *usersrepo.Patch) error {
	f.updatedID = id
	f.lastPatch = patch
	return f.updateErr
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	f.deletedID = id
	return f.deleteErr
}

type fakeTokensRepo struct {
	upsertErr    error
	lastUserID   string
	lastToken    string
	lastValidity time.Duration

	findOut *models.Token
	findErr error

	deleteErr     error
	deletedUserID string
}

func (f *fakeTokensRepo) Upsert(ctx context.Context, userID string, token string, validity time.Duration) error {
	f.lastUserID = userID
	f.lastToken = token
	f.lastValidity = validity
	return f.upsertErr
}

func (f *fakeTokensRepo) Find(ctx context.Context, token string) (*models.Token, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeTokensRepo) DeleteForUser(ctx context.Context, userID string) error {
	f.deletedUserID = userID
	return f.deleteErr
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	tk *fakeTokensRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) Tokens(db dbx.DBTX) tokensrepo.Repository    { return m.tk }

type fakeResolver struct {
	out     string
	err     error
	lastRef string
}

func (f *fakeResolver) Resolve(ctx context.Context, ref string) (string, error) {
	f.lastRef = ref
	if f.err != nil {
		return "", f.err
	}
	if f.out != "" {
		return f.out, nil
	}
	return ref, nil
}

func newAccountService(db *sql.DB, rm *fakeRepoManager, resolver *fakeResolver) *AccountService {
	issuer := NewTokenIssuer(rm, time.Hour)
	return NewAccountService(db, rm, issuer, resolver, nopLogger{}, time.Minute)
}
