package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/dbx"
	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/models"
	apiusagerepo "github.com/relativit/relativit/internal/server/repositories/apiusage"
	auditlogrepo "github.com/relativit/relativit/internal/server/repositories/auditlog"
	refreshtokensrepo "github.com/relativit/relativit/internal/server/repositories/refreshtokens"
	usersrepo "github.com/relativit/relativit/internal/server/repositories/users"
	verificationcodesrepo "github.com/relativit/relativit/internal/server/repositories/verificationcodes"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// --- in-memory users repository ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}}
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("u-%d", f.nextID)
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	u.CreatedAt = time.Now()
	return f.add(u), nil
}

// GetByEmail and GetByID return copies so concurrent tests do not race on
// fields the service reads outside the repo lock.
func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UpdateLastLogin(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

func (f *fakeUsersRepo) UpdateProfile(ctx context.Context, id string, name, avatar *string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if avatar != nil {
		u.Avatar = *avatar
	}
	return u, nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsersRepo) SetAPICredential(ctx context.Context, id, provider, ciphertext, iv string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.APIProvider, u.APIKeyEncrypted, u.APIKeyIV = provider, ciphertext, iv
	return nil
}

func (f *fakeUsersRepo) ClearAPICredential(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.APIProvider, u.APIKeyEncrypted, u.APIKeyIV = "", "", ""
	return nil
}

func (f *fakeUsersRepo) EnableTrialMode(ctx context.Context, id string, credits float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, common.ErrorNotFound
	}
	if u.UseTrialMode {
		return false, nil
	}
	now := time.Now()
	u.UseTrialMode = true
	u.TrialCredits = credits
	u.TrialStartedAt = &now
	return true, nil
}

func (f *fakeUsersRepo) DebitTrialCredits(ctx context.Context, id string, amount float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	if !u.UseTrialMode || u.TrialCredits <= 0 {
		return 0, common.ErrTrialCreditsExhausted
	}
	u.TrialCredits -= amount
	if u.TrialCredits < 0 {
		u.TrialCredits = 0
	}
	return u.TrialCredits, nil
}

// --- in-memory refresh token repository ---

type fakeRefreshRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken

	createErr error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{tokens: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok {
		return t, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, token string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[token]; ok && t.UserID == userID && t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
	}
	return nil
}

func (f *fakeRefreshRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
	return nil
}

// --- in-memory verification code repository ---

type fakeCodesRepo struct {
	mu    sync.Mutex
	codes map[string]*models.VerificationCode // by email

	deleted []string
}

func newFakeCodesRepo() *fakeCodesRepo {
	return &fakeCodesRepo{codes: map[string]*models.VerificationCode{}}
}

func (f *fakeCodesRepo) DeleteForEmail(ctx context.Context, email string, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, email)
	delete(f.codes, email)
	return nil
}

func (f *fakeCodesRepo) Create(ctx context.Context, code *models.VerificationCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code.Email] = code
	return nil
}

func (f *fakeCodesRepo) Consume(ctx context.Context, email string, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[email]
	if !ok || c.Code != code || c.UsedAt != nil || c.ExpiresAt.Before(time.Now()) {
		return common.ErrorNotFound
	}
	now := time.Now()
	c.UsedAt = &now
	return nil
}

func (f *fakeCodesRepo) HasRecentlyUsed(ctx context.Context, email string, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[email]
	if !ok || c.UsedAt == nil {
		return false, nil
	}
	return c.UsedAt.After(time.Now().Add(-window)), nil
}

// --- append-only sinks ---

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLogEntry
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type fakeUsageRepo struct {
	mu   sync.Mutex
	rows []*models.APIUsage
}

func (f *fakeUsageRepo) Append(ctx context.Context, usage *models.APIUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now()
	}
	f.rows = append(f.rows, usage)
	return nil
}

func (f *fakeUsageRepo) TotalsForUser(ctx context.Context, userID string, since time.Time) (*models.UsageTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := &models.UsageTotals{}
	for _, r := range f.rows {
		if r.UserID != userID || r.CreatedAt.Before(since) {
			continue
		}
		totals.Requests++
		totals.Tokens += r.Tokens
		totals.Cost += r.Cost
	}
	return totals, nil
}

func (f *fakeUsageRepo) GroupedForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byKey := map[string]*models.UsageGroup{}
	var order []string
	for _, r := range f.rows {
		if r.UserID != userID || r.CreatedAt.Before(since) {
			continue
		}
		key := r.Provider + "/" + r.Endpoint
		g, ok := byKey[key]
		if !ok {
			g = &models.UsageGroup{Provider: r.Provider, Endpoint: r.Endpoint}
			byKey[key] = g
			order = append(order, key)
		}
		g.Requests++
		g.Tokens += r.Tokens
		g.Cost += r.Cost
	}
	groups := make([]models.UsageGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups, nil
}

func (f *fakeUsageRepo) DailyForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDay := map[string]*models.UsageDay{}
	var order []string
	for _, r := range f.rows {
		if r.UserID != userID || r.CreatedAt.Before(since) {
			continue
		}
		day := r.CreatedAt.Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			date, _ := time.Parse("2006-01-02", day)
			d = &models.UsageDay{Date: date}
			byDay[day] = d
			order = append(order, day)
		}
		d.Requests++
		d.Tokens += r.Tokens
	}
	days := make([]models.UsageDay, 0, len(order))
	for _, day := range order {
		days = append(days, *byDay[day])
	}
	return days, nil
}

func (f *fakeUsageRepo) all() []*models.APIUsage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.APIUsage, len(f.rows))
	copy(out, f.rows)
	return out
}

// --- repository manager over the fakes ---

type fakeRepoManager struct {
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
	codes   *fakeCodesRepo
	audit   *fakeAuditRepo
	usage   *fakeUsageRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:   newFakeUsersRepo(),
		refresh: newFakeRefreshRepo(),
		codes:   newFakeCodesRepo(),
		audit:   &fakeAuditRepo{},
		usage:   &fakeUsageRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.refresh
}
func (m *fakeRepoManager) VerificationCodes(db dbx.DBTX) verificationcodesrepo.Repository {
	return m.codes
}
func (m *fakeRepoManager) AuditLog(db dbx.DBTX) auditlogrepo.Repository { return m.audit }
func (m *fakeRepoManager) APIUsage(db dbx.DBTX) apiusagerepo.Repository { return m.usage }

// --- email sender ---

type fakeSender struct {
	mu      sync.Mutex
	sent    []string // bodies
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return "msg-1", nil
}
