package client

import (
	"encoding/json"
	"sync"

	"github.com/segmentio/ksuid"

	cst "github.com/HarshAmrute/JusPost-Fullstack-project/constants"
	md "github.com/HarshAmrute/JusPost-Fullstack-project/models"
)

// storage keys of persisted identity state
const (
	storageKeyUser   = "juspost.user"
	storageKeyAnonID = "juspost.anonId"
)

// Storage persists identity state across sessions. Implementations are
// expected to be best-effort key-value stores, e.g. a browser's localStorage
// or a dotfile.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear(key string)
}

// Identity is one session's view of who the caller is. An identity always
// carries an anonymous id, so likes work before login; the user part is set
// only while logged in.
type Identity struct {
	mu     sync.Mutex
	user   *md.User
	anonID string
	store  Storage
}

// NewIdentity loads the persisted session from s, minting and persisting a
// fresh anonymous id when none exists yet. The anonymous id stays stable for
// the lifetime of the storage.
func NewIdentity(s Storage) *Identity {
	id := &Identity{store: s}
	if v, ok := s.Get(storageKeyAnonID); ok && v != "" {
		id.anonID = v
	} else {
		id.anonID = cst.AnonymousIDPrefix + ksuid.New().String()
		s.Set(storageKeyAnonID, id.anonID)
	}
	if v, ok := s.Get(storageKeyUser); ok && v != "" {
		u := &md.User{}
		// a corrupt record reads as logged-out
		if err := json.Unmarshal([]byte(v), u); err == nil && u.Username != "" {
			id.user = u
		}
	}
	return id
}

// Login binds the session to u and persists it.
func (i *Identity) Login(u *md.User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.user = u
	if raw, err := json.Marshal(u); err == nil {
		i.store.Set(storageKeyUser, string(raw))
	}
}

// Logout drops the user part of the session. The anonymous id survives.
func (i *Identity) Logout() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.user = nil
	i.store.Clear(storageKeyUser)
}

// User returns the logged-in user, or nil when the session is anonymous.
func (i *Identity) User() *md.User {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.user
}

// LikerID is the id this session likes posts under: the username when logged
// in, the stable anonymous id otherwise.
func (i *Identity) LikerID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.user != nil {
		return i.user.Username
	}
	return i.anonID
}

// Nickname is the session's display name, falling back to the anonymous
// label when logged out.
func (i *Identity) Nickname() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.user != nil {
		return i.user.Nickname
	}
	return cst.AnonymousLabel
}

// Admin reports whether the session carries the admin role.
func (i *Identity) Admin() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.user.Admin()
}

// MapStorage is an in-memory Storage, useful for tests and short-lived
// sessions.
type MapStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMapStorage() *MapStorage {
	return &MapStorage{m: map[string]string{}}
}

func (s *MapStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MapStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MapStorage) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
