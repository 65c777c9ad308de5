package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mvrcrypto/customapi/internal/common"
	"github.com/mvrcrypto/customapi/internal/cryptox"
	"github.com/mvrcrypto/customapi/internal/server/models"
	"github.com/mvrcrypto/customapi/internal/server/validation"
)

func localUser(id, email, password string) *models.User {
	salt := cryptox.GenerateSalt()
	return &models.User{
		ID:           id,
		Email:        email,
		Username:     "alice",
		Salt:         salt,
		PasswordHash: cryptox.HashPassword([]byte(password), salt),
		HashVersion:  cryptox.HashVersion,
	}
}

func TestRegister_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}
	resolver := &fakeResolver{}
	s := newAccountService(db, rm, resolver)

	view, err := s.Register(context.Background(), &RegisterRequest{
		Email:    strPtr("Alice@Example.com"),
		Username: strPtr("alice"),
		Password: strPtr("s3cret"),
		Picture:  strPtr("https://cdn.example.com/a.png"),
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if view.Email != "alice@example.com" || view.Username != "alice" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.AccessToken == "" {
		t.Fatalf("registration must issue a token")
	}
	if resolver.lastRef != "https://cdn.example.com/a.png" {
		t.Fatalf("picture reference not resolved: %q", resolver.lastRef)
	}

	created := rm.u.createdWith
	if len(created.Salt) != 16 || len(created.PasswordHash) != 32 || created.HashVersion != cryptox.HashVersion {
		t.Fatalf("stored credentials malformed: salt=%d hash=%d version=%d",
			len(created.Salt), len(created.PasswordHash), created.HashVersion)
	}
	if !cryptox.VerifyPasswordVersion([]byte("s3cret"), created.Salt, created.PasswordHash, created.HashVersion) {
		t.Fatalf("stored hash does not verify against the registered password")
	}
	if rm.tk.lastUserID != "u1" {
		t.Fatalf("token issued for %q", rm.tk.lastUserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()
	s := newAccountService(db, &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}, &fakeResolver{})

	tests := []struct {
		name  string
		req   *RegisterRequest
		field string
	}{
		{"missing email", &RegisterRequest{}, "email"},
		{"bad email", &RegisterRequest{Email: strPtr("not-an-address")}, "email"},
		{"bad username", &RegisterRequest{Email: strPtr("a@b.co"), Username: strPtr("x")}, "username"},
		{"empty password", &RegisterRequest{Email: strPtr("a@b.co"), Password: strPtr("  ")}, "password"},
		{"bad picture", &RegisterRequest{Email: strPtr("a@b.co"), Picture: strPtr("ftp://x")}, "picture"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(context.Background(), tc.req)
			var errs validation.Errors
			if !errors.As(err, &errs) {
				t.Fatalf("expected validation errors, got %v", err)
			}
			if len(errs) != 1 || errs[0].Field != tc.field {
				t.Fatalf("unexpected field errors: %+v", errs)
			}
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: &fakeUsersRepo{emailTaken: true}, tk: &fakeTokensRepo{}}
	s := newAccountService(db, rm, &fakeResolver{})

	_, err := s.Register(context.Background(), &RegisterRequest{Email: strPtr("a@b.co"), Password: strPtr("x")})
	if !errors.Is(err, common.ErrorTaken) {
		t.Fatalf("want ErrorTaken, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	rm := &fakeRepoManager{u: &fakeUsersRepo{usernameTaken: true}, tk: &fakeTokensRepo{}}
	s := newAccountService(db, rm, &fakeResolver{})

	_, err := s.Register(context.Background(), &RegisterRequest{Email: strPtr("a@b.co"), Username: strPtr("alice")})
	if !errors.Is(err, common.ErrorTaken) {
		t.Fatalf("want ErrorTaken, got %v", err)
	}
}

func TestRegister_WithoutPasswordCreatesFederatedOnly(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}
	s := newAccountService(db, rm, &fakeResolver{})

	if _, err := s.Register(context.Background(), &RegisterRequest{Email: strPtr("a@b.co")}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if !rm.u.createdWith.Federated() {
		t.Fatalf("passwordless registration must carry no local credentials")
	}
}

func TestLogin_Success(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	user := localUser("u7", "a@b.co", "s3cret")
	rm := &fakeRepoManager{
		u:  &fakeUsersRepo{byEmail: map[string]*models.User{"a@b.co": user}},
		tk: &fakeTokensRepo{},
	}
	s := newAccountService(db, rm, &fakeResolver{})

	view, err := s.Login(context.Background(), "a@b.co", "s3cret")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if view.AccessToken == "" || view.Email != "a@b.co" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if rm.tk.lastUserID != "u7" {
		t.Fatalf("token issued for %q", rm.tk.lastUserID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	user := localUser("u7", "a@b.co", "s3cret")
	federated := &models.User{ID: "u8", Email: "f@b.co"}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@b.co", "s3cret"},
		{"wrong password", "a@b.co", "wrong"},
		{"federated-only account", "f@b.co", "anything"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			defer db.Close()
			mock.ExpectBegin()
			mock.ExpectRollback()

			rm := &fakeRepoManager{
				u:  &fakeUsersRepo{byEmail: map[string]*models.User{"a@b.co": user, "f@b.co": federated}},
				tk: &fakeTokensRepo{},
			}
			s := newAccountService(db, rm, &fakeResolver{})

			_, err := s.Login(context.Background(), tc.email, tc.password)
			if !errors.Is(err, common.ErrorUnauthorized) {
				t.Fatalf("want ErrorUnauthorized, got %v", err)
			}
			if rm.tk.lastUserID != "" {
				t.Fatalf("failed login must not issue a token")
			}
		})
	}
}

func TestUpdate_PartialFields(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	user := localUser("u7", "a@b.co", "s3cret")
	rm := &fakeRepoManager{
		u:  &fakeUsersRepo{byID: map[string]*models.User{"u7": user}},
		tk: &fakeTokensRepo{},
	}
	s := newAccountService(db, rm, &fakeResolver{})

	view, err := s.Update(context.Background(), "u7", &UpdateRequest{
		Username: strPtr("alice_2"),
		Picture:  strPtr("https://cdn.example.com/b.png"),
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	patch := rm.u.lastPatch
	if patch.Email != nil {
		t.Fatalf("absent email must not be written")
	}
	if patch.Username == nil || *patch.Username != "alice_2" {
		t.Fatalf("username patch = %v", patch.Username)
	}
	if patch.SetCredentials {
		t.Fatalf("credentials must stay untouched")
	}
	if view.Username != "alice_2" || view.Email != "a@b.co" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.PasswordUpdate != nil {
		t.Fatalf("passwordUpdate must be absent when no change was requested")
	}
	if view.AccessToken != "" {
		t.Fatalf("update must not mint a token")
	}
}

func TestUpdate_PasswordChange(t *testing.T) {
	user := localUser("u7", "a@b.co", "old-pass")

	tests := []struct {
		name        string
		old         *string
		wantChanged bool
	}{
		{"correct old password", strPtr("old-pass"), true},
		{"wrong old password", strPtr("nope"), false},
		{"missing old password", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			defer db.Close()
			mock.ExpectBegin()
			mock.ExpectCommit()

			rm := &fakeRepoManager{
				u:  &fakeUsersRepo{byID: map[string]*models.User{"u7": user}},
				tk: &fakeTokensRepo{},
			}
			s := newAccountService(db, rm, &fakeResolver{})

			view, err := s.Update(context.Background(), "u7", &UpdateRequest{
				OldPassword: tc.old,
				NewPassword: strPtr("new-pass"),
			})
			if err != nil {
				t.Fatalf("Update error: %v", err)
			}
			if view.PasswordUpdate == nil || *view.PasswordUpdate != tc.wantChanged {
				t.Fatalf("passwordUpdate = %v, want %v", view.PasswordUpdate, tc.wantChanged)
			}

			patch := rm.u.lastPatch
			if patch.SetCredentials != tc.wantChanged {
				t.Fatalf("SetCredentials = %v, want %v", patch.SetCredentials, tc.wantChanged)
			}
			if tc.wantChanged {
				if !cryptox.VerifyPasswordVersion([]byte("new-pass"), patch.Salt, patch.PasswordHash, patch.HashVersion) {
					t.Fatalf("new credentials do not verify")
				}
				if bytes.Equal(patch.Salt, user.Salt) {
					t.Fatalf("password change must generate a fresh salt")
				}
			}
		})
	}
}

func TestUpdate_FederatedAccountCannotSetPassword(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := &fakeRepoManager{
		u:  &fakeUsersRepo{byID: map[string]*models.User{"u9": {ID: "u9", Email: "f@b.co"}}},
		tk: &fakeTokensRepo{},
	}
	s := newAccountService(db, rm, &fakeResolver{})

	view, err := s.Update(context.Background(), "u9", &UpdateRequest{
		OldPassword: strPtr("anything"),
		NewPassword: strPtr("new-pass"),
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if view.PasswordUpdate == nil || *view.PasswordUpdate {
		t.Fatalf("federated account must not gain a password, flag = %v", view.PasswordUpdate)
	}
}

func TestUpdate_EmailTaken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	user := localUser("u7", "a@b.co", "s3cret")
	rm := &fakeRepoManager{
		u:  &fakeUsersRepo{byID: map[string]*models.User{"u7": user}, emailTaken: true},
		tk: &fakeTokensRepo{},
	}
	s := newAccountService(db, rm, &fakeResolver{})

	_, err := s.Update(context.Background(), "u7", &UpdateRequest{Email: strPtr("new@b.co")})
	if !errors.Is(err, common.ErrorTaken) {
		t.Fatalf("want ErrorTaken, got %v", err)
	}
	if rm.u.lastExclude != "u7" {
		t.Fatalf("uniqueness check must exclude the requester, exclude = %q", rm.u.lastExclude)
	}
}

func TestDelete(t *testing.T) {
	user := localUser("u7", "a@b.co", "s3cret")

	t.Run("success", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		rm := &fakeRepoManager{
			u:  &fakeUsersRepo{byID: map[string]*models.User{"u7": user}},
			tk: &fakeTokensRepo{},
		}
		s := newAccountService(db, rm, &fakeResolver{})

		if err := s.Delete(context.Background(), "u7", "s3cret"); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		if rm.u.deletedID != "u7" {
			t.Fatalf("deleted id = %q", rm.u.deletedID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()

		rm := &fakeRepoManager{
			u:  &fakeUsersRepo{byID: map[string]*models.User{"u7": user}},
			tk: &fakeTokensRepo{},
		}
		s := newAccountService(db, rm, &fakeResolver{})

		err := s.Delete(context.Background(), "u7", "wrong")
		if !errors.Is(err, common.ErrorUnauthorized) {
			t.Fatalf("want ErrorUnauthorized, got %v", err)
		}
		if rm.u.deletedID != "" {
			t.Fatalf("row must survive a failed verification")
		}
	})

	t.Run("federated-only account", func(t *testing.T) {
		db, mock := newSQLMockDB(t)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()

		rm := &fakeRepoManager{
			u:  &fakeUsersRepo{byID: map[string]*models.User{"u9": {ID: "u9", Email: "f@b.co"}}},
			tk: &fakeTokensRepo{},
		}
		s := newAccountService(db, rm, &fakeResolver{})

		if err := s.Delete(context.Background(), "u9", "x"); !errors.Is(err, common.ErrorUnauthorized) {
			t.Fatalf("want ErrorUnauthorized, got %v", err)
		}
	})
}

func TestLogout(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}
	s := newAccountService(db, rm, &fakeResolver{})

	if err := s.Logout(context.Background(), "u7"); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if rm.tk.deletedUserID != "u7" {
		t.Fatalf("revoked user id = %q", rm.tk.deletedUserID)
	}
}

func TestAuthenticate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{findErr: common.ErrorNotFound}}
	s := newAccountService(db, rm, &fakeResolver{})

	if _, err := s.Authenticate(context.Background(), "ghost"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestCheckEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	t.Run("available", func(t *testing.T) {
		s := newAccountService(db, &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}, &fakeResolver{})
		if err := s.CheckEmail(context.Background(), "a@b.co"); err != nil {
			t.Fatalf("CheckEmail error: %v", err)
		}
	})

	t.Run("taken", func(t *testing.T) {
		s := newAccountService(db, &fakeRepoManager{u: &fakeUsersRepo{emailTaken: true}, tk: &fakeTokensRepo{}}, &fakeResolver{})
		if err := s.CheckEmail(context.Background(), "a@b.co"); !errors.Is(err, common.ErrorTaken) {
			t.Fatalf("want ErrorTaken, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		s := newAccountService(db, &fakeRepoManager{u: &fakeUsersRepo{}, tk: &fakeTokensRepo{}}, &fakeResolver{})
		var errs validation.Errors
		if err := s.CheckEmail(context.Background(), "not-an-address"); !errors.As(err, &errs) {
			t.Fatalf("want validation errors, got %v", err)
		}
	})
}

func TestCheckUsername(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s := newAccountService(db, &fakeRepoManager{u: &fakeUsersRepo{usernameTaken: true}, tk: &fakeTokensRepo{}}, &fakeResolver{})
	if err := s.CheckUsername(context.Background(), "alice"); !errors.Is(err, common.ErrorTaken) {
		t.Fatalf("want ErrorTaken, got %v", err)
	}
}
