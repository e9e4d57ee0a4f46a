// Package client is a Go consumer of the ticketing HTTP API: a bearer
// token session, a thin HTTP client with error classification, and an
// in-memory reservation collection kept in sync with server responses.
package client

import (
	"encoding/json"
	"sync"

	"github.com/avetisk/event-ticketing/internal/model"
)

// Keys under which session state is persisted in a Storage.  Consumers
// that inspect or migrate stored state rely on these names.
const (
	StorageKeyToken = "auth.token"
	StorageKeyUser  = "auth.user"
)

// Storage persists session state across client restarts.  A nil value
// for Get's result means the key is absent.  Implementations must be
// safe for concurrent use.
type Storage interface {
	Get(key string) []byte
	Set(key string, value []byte)
	Delete(key string)
}

// MemoryStorage is a Storage backed by a map, suitable for tests and
// short-lived processes.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{m: make(map[string][]byte)} }

func (s *MemoryStorage) Get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

func (s *MemoryStorage) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Session holds the authenticated user's token and profile.  It is
// created on login, restored from storage on startup, and destroyed on
// logout or any auth failure.  There is no package-level auth state.
type Session struct {
	Token string
	User  *model.User
}

// Authenticated reports whether the session carries a token.
func (s *Session) Authenticated() bool { return s != nil && s.Token != "" }

// save persists the session under the documented storage keys.
func (s *Session) save(st Storage) {
	if st == nil {
		return
	}
	st.Set(StorageKeyToken, []byte(s.Token))
	if s.User != nil {
		if raw, err := json.Marshal(s.User); err == nil {
			st.Set(StorageKeyUser, raw)
		}
	}
}

// clearSession removes persisted session state.
func clearSession(st Storage) {
	if st == nil {
		return
	}
	st.Delete(StorageKeyToken)
	st.Delete(StorageKeyUser)
}

// restoreSession rebuilds a session from storage, or returns nil when
// no token is stored.
func restoreSession(st Storage) *Session {
	if st == nil {
		return nil
	}
	token := st.Get(StorageKeyToken)
	if len(token) == 0 {
		return nil
	}
	sess := &Session{Token: string(token)}
	if raw := st.Get(StorageKeyUser); len(raw) > 0 {
		var u model.User
		if err := json.Unmarshal(raw, &u); err == nil {
			sess.User = &u
		}
	}
	return sess
}
