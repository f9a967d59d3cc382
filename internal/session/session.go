// Package session holds the in-memory authentication state of the LOS client.
//
// The Store is a small state machine:
//
//	idle ──Start──▶ loading ──Succeed──▶ authenticated
//	                   │                     │
//	                   └──Fail──▶ failed     └──Reset──▶ idle
//
// It is mutated only through its transition methods and observed through
// read-only snapshots.
package session

import (
	"fmt"
	"slices"
	"sync"
)

// Status describes which state the store is in.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusFailed        Status = "failed"
)

// User is the normalized identity record of the signed-in user.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Active      bool     `json:"active"`
}

// HasRole reports whether name is one of the user's roles.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, name)
}

// HasPermission reports whether p is in the user's permission set.
func (u *User) HasPermission(p string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Permissions, p)
}

// Clone returns a deep copy so snapshots never share slices with the store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	c.Permissions = slices.Clone(u.Permissions)
	return &c
}

// Snapshot is a read-only view of the session at one instant.
type Snapshot struct {
	User            *User  `json:"user"`
	Token           string `json:"-"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
	Status          Status `json:"status"`
}

// Listener is notified with the new snapshot after every transition.
type Listener func(Snapshot)

// Store owns the session state.
type Store struct {
	mu        sync.RWMutex
	user      *User
	token     string
	loading   bool
	errMsg    string
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an unauthenticated idle store.
func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Start marks an attempt as in flight and clears the last error.
func (s *Store) Start() {
	s.mutate(func() {
		s.loading = true
		s.errMsg = ""
	})
}

// Succeed records an authenticated user and token.
// A nil user or empty token is rejected and leaves the store unchanged.
func (s *Store) Succeed(user *User, token string) error {
	if user == nil {
		return fmt.Errorf("session: cannot authenticate without a user")
	}
	if token == "" {
		return fmt.Errorf("session: cannot authenticate without a token")
	}
	s.mutate(func() {
		s.user = user.Clone()
		s.token = token
		s.loading = false
		s.errMsg = ""
	})
	return nil
}

// Fail clears the identity and records message as the last error.
func (s *Store) Fail(message string) {
	s.mutate(func() {
		s.user = nil
		s.token = ""
		s.loading = false
		s.errMsg = message
	})
}

// Reset returns the store to the unauthenticated idle state.
func (s *Store) Reset() {
	s.mutate(func() {
		s.user = nil
		s.token = ""
		s.loading = false
		s.errMsg = ""
	})
}

// ClearError drops the last error without touching anything else.
func (s *Store) ClearError() {
	s.mutate(func() {
		s.errMsg = ""
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Token returns the current bearer token, or "" when unauthenticated.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil when unauthenticated.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Subscribe registers fn for change notifications and returns a func that
// removes it. Listeners run synchronously after the transition, outside the lock.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	authenticated := s.user != nil && s.token != ""
	snap := Snapshot{
		User:            s.user.Clone(),
		Token:           s.token,
		IsAuthenticated: authenticated,
		IsLoading:       s.loading,
		Error:           s.errMsg,
	}

	switch {
	case s.loading:
		snap.Status = StatusLoading
	case authenticated:
		snap.Status = StatusAuthenticated
	case s.errMsg != "":
		snap.Status = StatusFailed
	default:
		snap.Status = StatusIdle
	}
	return snap
}
