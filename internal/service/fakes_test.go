package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"annotation-auth/internal/domain"
	"annotation-auth/internal/email"
	"annotation-auth/internal/repository"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	createErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	key := strings.ToLower(user.Email)
	if _, ok := m.usersByEmail[key]; ok {
		return repository.ErrDuplicate
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[key] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[strings.ToLower(email)]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, displayName string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.DisplayName = displayName
	user.UpdatedAt = updatedAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByID, id)
	delete(m.usersByEmail, strings.ToLower(user.Email))
	return nil
}

type mockTenantProvisioner struct {
	mu    sync.Mutex
	calls map[string]string
	err   error
}

func newMockTenantProvisioner() *mockTenantProvisioner {
	return &mockTenantProvisioner{calls: make(map[string]string)}
}

func (m *mockTenantProvisioner) ProvisionDefaultTenant(_ context.Context, userID, suggestedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls[userID] = suggestedName
	return nil
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	touches  int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]domain.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return domain.Session{}, pgx.ErrNoRows
}

func (m *mockSessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.LastActiveAt = &at
	m.sessions[id] = s
	m.touches++
	return nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.TokenHash == tokenHash {
			delete(m.sessions, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSessionRepo) DeleteByUserID(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type mockMagicLinkRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.MagicLinkToken
}

func newMockMagicLinkRepo() *mockMagicLinkRepo {
	return &mockMagicLinkRepo{tokens: make(map[string]domain.MagicLinkToken)}
}

func (m *mockMagicLinkRepo) Create(_ context.Context, token domain.MagicLinkToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == token.TokenHash {
			return repository.ErrDuplicate
		}
	}
	m.tokens[token.ID] = token
	return nil
}

func (m *mockMagicLinkRepo) GetUnusedByHash(_ context.Context, tokenHash string) (domain.MagicLinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash && t.UsedAt == nil {
			return t, nil
		}
	}
	return domain.MagicLinkToken{}, pgx.ErrNoRows
}

func (m *mockMagicLinkRepo) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	t.UsedAt = &at
	m.tokens[id] = t
	return true, nil
}

func (m *mockMagicLinkRepo) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) || (t.UsedAt != nil && t.UsedAt.Before(before)) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *mockMagicLinkRepo) only() domain.MagicLinkToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		return t
	}
	return domain.MagicLinkToken{}
}

type mockOAuthCodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.AuthorizationCode
}

func newMockOAuthCodeRepo() *mockOAuthCodeRepo {
	return &mockOAuthCodeRepo{codes: make(map[string]domain.AuthorizationCode)}
}

func (m *mockOAuthCodeRepo) Create(_ context.Context, code domain.AuthorizationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code.Code]; ok {
		return repository.ErrDuplicate
	}
	m.codes[code.Code] = code
	return nil
}

func (m *mockOAuthCodeRepo) Get(_ context.Context, code string) (domain.AuthorizationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockOAuthCodeRepo) Delete(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code]; !ok {
		return false, nil
	}
	delete(m.codes, code)
	return true, nil
}

func (m *mockOAuthCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.codes {
		if c.ExpiredAt(now) {
			delete(m.codes, k)
			n++
		}
	}
	return n, nil
}

type mockExtensionSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.ExtensionAuthSession
}

func newMockExtensionSessionRepo() *mockExtensionSessionRepo {
	return &mockExtensionSessionRepo{sessions: make(map[string]domain.ExtensionAuthSession)}
}

func (m *mockExtensionSessionRepo) Create(_ context.Context, session domain.ExtensionAuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *mockExtensionSessionRepo) Get(_ context.Context, id string) (domain.ExtensionAuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ExtensionAuthSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *mockExtensionSessionRepo) Complete(_ context.Context, id, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != domain.ExtensionStatusPending || s.ExpiredAt(at) {
		return false, nil
	}
	s.Status = domain.ExtensionStatusCompleted
	s.UserID = userID
	s.CompletedAt = &at
	m.sessions[id] = s
	return true, nil
}

func (m *mockExtensionSessionRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *mockExtensionSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) last() email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return email.Message{}
	}
	return m.sent[len(m.sent)-1]
}
