package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/cryptox"
	"github.com/relativit/relativit/internal/server/audit"
	"github.com/relativit/relativit/internal/server/models"
)

func newAuthService(t *testing.T, db *sql.DB, rm *fakeRepoManager) (*AuthService, *fakeSender) {
	t.Helper()
	logger := testLogger()
	sender := &fakeSender{}
	verification := NewVerificationService(db, rm, cryptox.FixedCodeGenerator{Code: "123456"}, sender, logger)
	tokens := NewTokenService(db, rm, testConfig())
	writer := audit.NewWriter(rm.audit, logger)
	return NewAuthService(db, rm, verification, tokens, writer, sender, logger), sender
}

func consumedCode(email string) *models.VerificationCode {
	now := time.Now()
	return &models.VerificationCode{
		Email: email, Code: "123456",
		ExpiresAt: now.Add(5 * time.Minute),
		UsedAt:    &now,
	}
}

func TestVerifyCode_NewUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.codes.codes["alice@example.com"] = &models.VerificationCode{
		Email: "alice@example.com", Code: "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	s, _ := newAuthService(t, db, rm)

	result, err := s.VerifyCode(context.Background(), "Alice@Example.com", "123456", RequestMeta{})
	if err != nil {
		t.Fatalf("VerifyCode error: %v", err)
	}
	if result.Status != "new_user" || result.Email != "alice@example.com" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Tokens != nil {
		t.Fatalf("no tokens expected for a new user")
	}
}

func TestVerifyCode_ExistingUser(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com"})
	rm.codes.codes["alice@example.com"] = &models.VerificationCode{
		Email: "alice@example.com", Code: "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	s, _ := newAuthService(t, db, rm)

	result, err := s.VerifyCode(context.Background(), "alice@example.com", "123456", RequestMeta{IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("VerifyCode error: %v", err)
	}
	if result.Status != "existing_user" || result.User.ID != user.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Tokens == nil || result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("missing token pair: %+v", result.Tokens)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("last login not updated")
	}
	if len(rm.audit.entries) != 1 || rm.audit.entries[0].Action != "login" {
		t.Fatalf("missing login audit entry: %+v", rm.audit.entries)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.codes.codes["alice@example.com"] = &models.VerificationCode{
		Email: "alice@example.com", Code: "123456",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	s, _ := newAuthService(t, db, rm)

	_, err := s.VerifyCode(context.Background(), "alice@example.com", "999999", RequestMeta{})
	if !errors.Is(err, common.ErrInvalidOrExpiredCode) {
		t.Fatalf("want ErrInvalidOrExpiredCode, got %v", err)
	}
}

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.codes.codes["alice@example.com"] = consumedCode("alice@example.com")

	s, sender := newAuthService(t, db, rm)

	pair, user, err := s.Register(context.Background(), "Alice@Example.com", " Alice ", "longenough", RequestMeta{})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("missing tokens")
	}
	if user.Email != "alice@example.com" || user.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.EmailVerified || user.EmailVerifiedAt == nil {
		t.Fatalf("email not marked verified")
	}
	if user.PasswordHash == "longenough" || !cryptox.VerifyPassword("longenough", user.PasswordHash) {
		t.Fatalf("password not hashed correctly")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("welcome email not sent")
	}
	if len(rm.audit.entries) != 1 || rm.audit.entries[0].Action != "register" {
		t.Fatalf("missing register audit entry")
	}
}

func TestRegister_EmailNotVerified(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	s, _ := newAuthService(t, db, newFakeRepoManager())

	_, _, err := s.Register(context.Background(), "alice@example.com", "Alice", "longenough", RequestMeta{})
	if !errors.Is(err, common.ErrEmailNotVerified) {
		t.Fatalf("want ErrEmailNotVerified, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.users.add(&models.User{Email: "alice@example.com"})
	rm.codes.codes["alice@example.com"] = consumedCode("alice@example.com")

	s, _ := newAuthService(t, db, rm)

	_, _, err := s.Register(context.Background(), "alice@example.com", "Alice", "longenough", RequestMeta{})
	if !errors.Is(err, common.ErrEmailAlreadyExists) {
		t.Fatalf("want ErrEmailAlreadyExists, got %v", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.codes.codes["alice@example.com"] = consumedCode("alice@example.com")

	s, _ := newAuthService(t, db, rm)

	_, _, err := s.Register(context.Background(), "alice@example.com", "Alice", "short", RequestMeta{})
	if !errors.Is(err, common.ErrPasswordTooShort) {
		t.Fatalf("want ErrPasswordTooShort, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := cryptox.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com", PasswordHash: hash})

	s, _ := newAuthService(t, db, rm)

	pair, got, err := s.Login(context.Background(), "Alice@Example.com", "correct-password", RequestMeta{})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || got.ID != user.ID {
		t.Fatalf("unexpected login result")
	}
}

func TestLogin_WrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := cryptox.HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := newFakeRepoManager()
	rm.users.add(&models.User{Email: "alice@example.com", PasswordHash: hash})

	s, _ := newAuthService(t, db, rm)

	_, _, errWrongPw := s.Login(context.Background(), "alice@example.com", "wrong", RequestMeta{})
	_, _, errUnknown := s.Login(context.Background(), "ghost@example.com", "whatever", RequestMeta{})

	if !errors.Is(errWrongPw, common.ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", errWrongPw)
	}
	if !errors.Is(errUnknown, common.ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", errUnknown)
	}
	if errWrongPw.Error() != errUnknown.Error() {
		t.Fatalf("errors differ, accounts enumerable: %q vs %q", errWrongPw, errUnknown)
	}
}

func TestLogin_PasswordlessAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	rm.users.add(&models.User{Email: "alice@example.com"})

	s, _ := newAuthService(t, db, rm)

	_, _, err := s.Login(context.Background(), "alice@example.com", "", RequestMeta{})
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePassword_RevokesAllSessions(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := cryptox.HashPassword("old-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com", PasswordHash: hash})
	rm.refresh.tokens["r-1"] = &models.RefreshToken{
		UserID: user.ID, Token: "r-1", ExpiresAt: time.Now().Add(time.Hour),
	}

	s, _ := newAuthService(t, db, rm)

	if err := s.ChangePassword(context.Background(), user.ID, "old-password", "new-password", RequestMeta{}); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}

	if !cryptox.VerifyPassword("new-password", user.PasswordHash) {
		t.Fatalf("new password not stored")
	}
	if rm.refresh.tokens["r-1"].RevokedAt == nil {
		t.Fatalf("existing session not revoked")
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	hash, err := cryptox.HashPassword("old-password")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com", PasswordHash: hash})

	s, _ := newAuthService(t, db, rm)

	err = s.ChangePassword(context.Background(), user.ID, "not-it", "new-password", RequestMeta{})
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogout_EmptyTokenStillAudits(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	s, _ := newAuthService(t, db, rm)

	if err := s.Logout(context.Background(), "", "u-1", RequestMeta{}); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if len(rm.audit.entries) != 1 || rm.audit.entries[0].Action != "logout" {
		t.Fatalf("missing logout audit entry")
	}
}

func TestUpdateProfile_PartialUpdate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := newFakeRepoManager()
	user := rm.users.add(&models.User{Email: "alice@example.com", Name: "Alice", Avatar: "old.png"})

	s, _ := newAuthService(t, db, rm)

	name := "Alicia"
	got, err := s.UpdateProfile(context.Background(), user.ID, &name, nil)
	if err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}
	if got.Name != "Alicia" || got.Avatar != "old.png" {
		t.Fatalf("nil field overwritten: %+v", got)
	}
}
