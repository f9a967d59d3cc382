// Package auth is the authentication façade of the LOS client.
//
// It composes the session.Store (in-memory state), the api.Client (transport)
// and a storage.Store (durable credentials). Callers use Login, Logout,
// RefreshToken, Initialize and the permission checks; they never mutate the
// session directly.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/losctl/internal/api"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/log"
	"github.com/felixgeelhaar/losctl/internal/metrics"
	"github.com/felixgeelhaar/losctl/internal/session"
	"github.com/felixgeelhaar/losctl/internal/storage"
)

// cleanupTimeout bounds storage clears that must complete even after the
// caller's context is cancelled.
const cleanupTimeout = 5 * time.Second

// Service is the authentication façade.
type Service struct {
	client  *api.Client
	session *session.Store
	store   storage.Store
	logger  *log.Logger
	metrics *metrics.Metrics

	// mu orders refresh commits against session teardown. gen is bumped by
	// Logout and invalidate; a refresh started under an older gen is dropped.
	mu  sync.Mutex
	gen uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l.WithComponent("auth")
	}
}

// WithMetrics records auth events.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSession uses an existing session store instead of a fresh one.
func WithSession(st *session.Store) Option {
	return func(s *Service) {
		s.session = st
	}
}

// New creates the façade and installs its token source, refresher and
// invalidation hook on client.
func New(client *api.Client, store storage.Store, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  store,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == nil {
		s.session = session.NewStore()
	}

	client.SetTokenSource(s.session)
	client.SetRefresher(s.refresh)
	client.SetInvalidator(s.invalidate)
	return s
}

type loginResponse struct {
	Success      bool            `json:"success"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
	Message      string          `json:"message"`
}

type refreshResponse struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Message      string `json:"message"`
}

// Login authenticates with username and password.
//
// Invalid credentials are rejected before any network call and leave the
// session untouched. Any other failure moves the session to failed, clears
// stored credentials and returns the classified error.
func (s *Service) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	s.session.Start()
	user, err := s.login(ctx, creds)
	s.metrics.ObserveAuthEvent("login", err == nil)
	if err != nil {
		s.clearStorage(ctx)
		if errors.IsAborted(err) {
			s.session.Reset()
			return nil, err
		}
		s.session.Fail(errors.Message(err))
		s.logger.LogError(ctx, "login failed", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "logged in", "username", user.Username)
	return user.Clone(), nil
}

func (s *Service) login(ctx context.Context, creds Credentials) (*session.User, error) {
	var resp loginResponse
	if err := s.client.Post(ctx, api.PathLogin, creds, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "invalid username or password"
		}
		return nil, errors.New(errors.KindUnauthorized, errors.ErrCodeLoginRejected, msg).
			WithStatus(http.StatusUnauthorized)
	}
	if resp.Token == "" || len(resp.User) == 0 {
		return nil, errors.New(errors.KindServer, errors.ErrCodeBadResponse,
			"login response is missing token or user")
	}

	user, err := NormalizeUser(resp.User)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, resp.Token, resp.RefreshToken, user); err != nil {
		return nil, err
	}
	if err := s.session.Succeed(user, resp.Token); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout ends the session. The backend call is best effort; local state and
// stored credentials are always cleared.
func (s *Service) Logout(ctx context.Context) {
	s.endSession()
	if s.session.Token() != "" {
		err := s.client.Do(ctx, &api.Request{
			Method:    http.MethodPost,
			Path:      api.PathLogout,
			NoRefresh: true,
		}, nil)
		if err != nil {
			s.logger.WithError(err).WarnContext(ctx, "logout request failed")
		}
	}

	s.clearStorage(ctx)
	s.session.Reset()
	s.metrics.ObserveAuthEvent("logout", true)
}

// RefreshToken exchanges the stored refresh token for a new bearer token.
// Concurrent calls share one backend request. On failure the session is
// logged out and an UnauthorizedError is returned. If ctx ends first the
// transport error is returned and the session is kept.
func (s *Service) RefreshToken(ctx context.Context) (string, error) {
	token, err := s.client.Refresh(ctx)
	if err == nil {
		return token, nil
	}
	if ctx.Err() != nil || errors.IsAborted(err) {
		return "", err
	}

	s.Logout(ctx)
	if errors.KindOf(err) == errors.KindUnauthorized {
		return "", err
	}
	return "", errors.NewUnauthorizedError("session expired", err)
}

// refresh is installed as the api.Client refresher and runs at most once at
// a time.
func (s *Service) refresh(ctx context.Context) (string, error) {
	gen := s.generation()
	s.session.Start()
	token, err := s.exchangeRefreshToken(ctx, gen)
	s.metrics.ObserveAuthEvent("refresh", err == nil)
	if err != nil {
		if errors.IsAborted(err) {
			s.logger.DebugContext(ctx, "token refresh discarded", "reason", errors.Message(err))
			return "", err
		}
		s.failRefresh(gen, errors.Message(err))
		s.logger.LogError(ctx, "token refresh failed", err)
		return "", err
	}
	s.logger.DebugContext(ctx, "token refreshed")
	return token, nil
}

// exchangeRefreshToken calls the refresh endpoint and commits the result
// unless the session generation moved past gen in the meantime.
func (s *Service) exchangeRefreshToken(ctx context.Context, gen uint64) (string, error) {
	refreshToken, ok, err := s.store.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		return "", err
	}
	if !ok || refreshToken == "" {
		return "", errors.New(errors.KindUnauthorized, errors.ErrCodeRefreshFailed, "no refresh token available").
			WithSuggestion("Run 'losctl auth login' to sign in again")
	}

	user := s.session.User()
	if user == nil {
		if user, err = s.storedUser(ctx); err != nil {
			return "", err
		}
	}

	var resp refreshResponse
	err = s.client.Do(ctx, &api.Request{
		Method:    http.MethodPost,
		Path:      api.PathRefresh,
		Body:      map[string]string{"refreshToken": refreshToken},
		NoRefresh: true,
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "token refresh was rejected"
		}
		return "", errors.New(errors.KindUnauthorized, errors.ErrCodeRefreshFailed, msg).
			WithStatus(http.StatusUnauthorized)
	}

	if resp.RefreshToken != "" {
		refreshToken = resp.RefreshToken
	}
	if err := s.commitRefresh(ctx, gen, resp.Token, refreshToken, user); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// commitRefresh writes all stored credentials and marks the session
// authenticated as one step with respect to Logout and invalidate.
func (s *Service) commitRefresh(ctx context.Context, gen uint64, token, refreshToken string, user *session.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return errSessionEnded()
	}
	if err := s.persist(ctx, token, refreshToken, user); err != nil {
		return err
	}
	return s.session.Succeed(user, token)
}

func (s *Service) failRefresh(gen uint64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.session.Fail(message)
	}
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// endSession makes any in-flight refresh discard its result.
func (s *Service) endSession() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

func errSessionEnded() error {
	return errors.New(errors.KindAborted, errors.ErrCodeAborted, "session ended during token refresh")
}

// Restore loads stored credentials into the session without contacting the
// backend. It reports whether a session was restored. A stale token is
// handled later by the client's refresh-and-retry.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	s.session.Start()

	creds, err := storage.Load(ctx, s.store)
	if err != nil {
		s.session.Reset()
		return false, err
	}
	if creds == nil {
		s.session.Reset()
		return false, nil
	}

	user, err := NormalizeUser(creds.User)
	if err != nil {
		s.logger.WithError(err).WarnContext(ctx, "discarding unreadable stored user")
		s.clearStorage(ctx)
		s.session.Reset()
		return false, nil
	}
	if err := s.session.Succeed(user, creds.Token); err != nil {
		return false, err
	}
	return true, nil
}

// Initialize restores a stored session. When token and user are both stored
// the session is marked authenticated immediately and then validated against
// /auth/me. A rejected token logs out; an aborted call leaves the state as is.
func (s *Service) Initialize(ctx context.Context) error {
	restored, err := s.Restore(ctx)
	if err != nil || !restored {
		return err
	}

	current, err := s.CurrentUser(ctx)
	if err != nil {
		switch errors.KindOf(err) {
		case errors.KindAborted:
		case errors.KindUnauthorized, errors.KindForbidden:
			s.logger.WithError(err).InfoContext(ctx, "stored session is no longer valid")
			s.Logout(ctx)
		default:
			s.logger.WithError(err).WarnContext(ctx, "could not validate stored session")
		}
		return err
	}

	data, err := json.Marshal(current)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to encode user", err)
	}
	if err := s.store.Set(ctx, storage.KeyUser, string(data)); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to update stored user")
	}
	return s.session.Succeed(current, s.session.Token())
}

// CurrentUser fetches and normalizes the signed-in user from the backend.
func (s *Service) CurrentUser(ctx context.Context) (*session.User, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, api.PathMe, nil, &raw); err != nil {
		return nil, err
	}
	return NormalizeUser(raw)
}

// HasPermission reports whether the signed-in user holds permission p.
func (s *Service) HasPermission(p string) bool {
	snap := s.session.Snapshot()
	return snap.IsAuthenticated && snap.User.HasPermission(p)
}

// HasRole reports whether the signed-in user has role name.
func (s *Service) HasRole(name string) bool {
	snap := s.session.Snapshot()
	return snap.IsAuthenticated && snap.User.HasRole(name)
}

// ClearError dismisses the last failure message.
func (s *Service) ClearError() {
	s.session.ClearError()
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() session.Snapshot {
	return s.session.Snapshot()
}

// Subscribe registers fn for session changes and returns an unsubscribe func.
func (s *Service) Subscribe(fn session.Listener) func() {
	return s.session.Subscribe(fn)
}

// TokenExpiry returns the exp claim of the current bearer token.
func (s *Service) TokenExpiry() (time.Time, bool) {
	return TokenExpiry(s.session.Token())
}

// invalidate is installed as the api.Client invalidation hook.
func (s *Service) invalidate() {
	s.endSession()
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	s.clearStorage(ctx)
	s.session.Reset()
	s.metrics.ObserveAuthEvent("invalidate", true)
	s.logger.Info("session invalidated")
}

func (s *Service) persist(ctx context.Context, token, refreshToken string, user *session.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to encode user", err)
	}
	return storage.Save(ctx, s.store, storage.Credentials{
		Token:        token,
		RefreshToken: refreshToken,
		User:         data,
	})
}

func (s *Service) storedUser(ctx context.Context) (*session.User, error) {
	raw, ok, err := s.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, errors.NewNoSessionError()
	}
	return NormalizeUser(json.RawMessage(raw))
}

// clearStorage removes stored credentials even if ctx is already cancelled.
func (s *Service) clearStorage(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := storage.Clear(ctx, s.store); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "failed to clear stored credentials")
	}
}
