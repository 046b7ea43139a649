package http

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

// memStore implementa todos los repositorios sobre mapas, lo justo para
// ejercitar los handlers de punta a punta.
type memStore struct {
	mu         sync.Mutex
	users      map[string]domain.User
	sessions   map[string]domain.Session
	magicLinks map[string]domain.MagicLinkToken
	codes      map[string]domain.AuthorizationCode
	extension  map[string]domain.ExtensionAuthSession
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[string]domain.User),
		sessions:   make(map[string]domain.Session),
		magicLinks: make(map[string]domain.MagicLinkToken),
		codes:      make(map[string]domain.AuthorizationCode),
		extension:  make(map[string]domain.ExtensionAuthSession),
	}
}

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m memUsers) GetByEmail(_ context.Context, emailAddr string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, emailAddr) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m memUsers) UpdateProfile(_ context.Context, id, displayName string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.DisplayName = displayName
	u.UpdatedAt = updatedAt
	m.users[id] = u
	return nil
}

func (m memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

type memSessions struct{ *memStore }

func (m memSessions) Create(_ context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m memSessions) GetByTokenHash(_ context.Context, tokenHash string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return domain.Session{}, pgx.ErrNoRows
}

func (m memSessions) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	s.LastActiveAt = &at
	m.sessions[id] = s
	return nil
}

func (m memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m memSessions) DeleteByTokenHash(_ context.Context, tokenHash string) (bool, error) {
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

func (m memSessions) DeleteByUserID(_ context.Context, userID string) (int64, error) {
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

func (m memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type memMagicLinks struct{ *memStore }

func (m memMagicLinks) Create(_ context.Context, token domain.MagicLinkToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.magicLinks[token.ID] = token
	return nil
}

func (m memMagicLinks) GetUnusedByHash(_ context.Context, tokenHash string) (domain.MagicLinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.magicLinks {
		if t.TokenHash == tokenHash && t.UsedAt == nil {
			return t, nil
		}
	}
	return domain.MagicLinkToken{}, pgx.ErrNoRows
}

func (m memMagicLinks) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.magicLinks[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	t.UsedAt = &at
	m.magicLinks[id] = t
	return true, nil
}

func (m memMagicLinks) DeleteStale(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memCodes struct{ *memStore }

func (m memCodes) Create(_ context.Context, code domain.AuthorizationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code.Code] = code
	return nil
}

func (m memCodes) Get(_ context.Context, code string) (domain.AuthorizationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m memCodes) Delete(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[code]; !ok {
		return false, nil
	}
	delete(m.codes, code)
	return true, nil
}

func (m memCodes) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type memExtension struct{ *memStore }

func (m memExtension) Create(_ context.Context, session domain.ExtensionAuthSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extension[session.ID] = session
	return nil
}

func (m memExtension) Get(_ context.Context, id string) (domain.ExtensionAuthSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.extension[id]
	if !ok {
		return domain.ExtensionAuthSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m memExtension) Complete(_ context.Context, id, userID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.extension[id]
	if !ok || s.Status != domain.ExtensionStatusPending || s.ExpiredAt(at) {
		return false, nil
	}
	s.Status = domain.ExtensionStatusCompleted
	s.UserID = userID
	s.CompletedAt = &at
	m.extension[id] = s
	return true, nil
}

func (m memExtension) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.extension[id]; !ok {
		return false, nil
	}
	delete(m.extension, id)
	return true, nil
}

func (m memExtension) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type captureSender struct {
	mu   sync.Mutex
	sent []email.Message
}

func (s *captureSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *captureSender) last() email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return email.Message{}
	}
	return s.sent[len(s.sent)-1]
}
