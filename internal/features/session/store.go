// Package session holds the authenticated identity and credential for the running process.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"bookworm/internal/common/errors"
	"bookworm/internal/common/event"
	"bookworm/internal/common/validation"
	"bookworm/internal/domain/user"
	"bookworm/internal/platform/api"
	"bookworm/internal/platform/kv"
)

// Persisted keys. Both are written together and removed together.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Authenticator is the part of the API the session needs.
type Authenticator interface {
	Register(ctx context.Context, in api.RegisterRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, in api.LoginRequest) (*api.AuthResponse, error)
}

// Session is a point-in-time copy of the store's state.
// Credential is non-empty exactly when Identity is set. Version grows with every change.
type Session struct {
	Identity    *user.Identity
	Credential  string
	IsRestoring bool
	IsBusy      bool
	Version     uint64
}

func (s Session) Authenticated() bool {
	return s.Identity != nil && s.Credential != ""
}

// Result is the outcome of Register and Login. Failures never escape as errors.
type Result struct {
	Success bool
	Error   string
	Code    errors.ErrorCode
}

func failure(err error) Result {
	return Result{Success: false, Error: errors.UserMessage(err), Code: errors.CodeOf(err)}
}

type Store struct {
	auth Authenticator
	kv   kv.Store
	log  zerolog.Logger
	bus  *event.Bus[Session]

	mu       sync.Mutex
	state    Session
	restored bool
}

func NewStore(auth Authenticator, store kv.Store, log zerolog.Logger) *Store {
	log = log.With().Str("component", "session").Logger()
	return &Store{
		auth:  auth,
		kv:    store,
		log:   log,
		bus:   event.NewBus[Session](log),
		state: Session{IsRestoring: true},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Session {
	out := s.state
	if out.Identity != nil {
		id := *out.Identity
		out.Identity = &id
	}
	return out
}

// Credential returns the bearer token, or "" when logged out.
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Credential
}

// Subscribe calls fn with a fresh snapshot after every state change. Concurrent
// changes may be delivered out of order; compare Version.
func (s *Store) Subscribe(fn func(Session)) func() {
	return s.bus.Subscribe(fn)
}

// update applies fn under the lock and publishes the resulting state.
func (s *Store) update(fn func(*Session)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.bus.Publish(snap)
}

// Restore loads a persisted session. Only the first call does anything; it
// always ends with IsRestoring false. Storage problems count as "no session".
func (s *Store) Restore(ctx context.Context) {
	s.mu.Lock()
	if s.restored {
		s.mu.Unlock()
		s.log.Warn().Msg("Restore called more than once, ignoring")
		return
	}
	s.restored = true
	s.mu.Unlock()

	identity, token := s.load(ctx)

	s.update(func(st *Session) {
		st.IsRestoring = false
		if identity != nil && !st.Authenticated() {
			st.Identity = identity
			st.Credential = token
		}
	})
	if identity != nil {
		s.log.Info().Str("user_id", identity.ID).Msg("Session restored")
	}
}

func (s *Store) load(ctx context.Context) (*user.Identity, string) {
	token, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		if !stderrors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(errors.NewStorageError("read token", err)).Msg("Failed to restore session")
		}
		return nil, ""
	}
	raw, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		if !stderrors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(errors.NewStorageError("read user", err)).Msg("Failed to restore session")
		}
		return nil, ""
	}

	var identity user.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		s.log.Warn().Err(err).Msg("Persisted user is not valid JSON")
		return nil, ""
	}
	if strings.TrimSpace(token) == "" || !identity.Valid() {
		s.log.Warn().Msg("Persisted session is incomplete")
		return nil, ""
	}
	return &identity, token
}

// Register checks only that the fields are filled in. The server judges the rest.
func (s *Store) Register(ctx context.Context, username, email, password string) Result {
	if err := validation.ValidateSignupPresence(username, email, password); err != nil {
		return failure(err)
	}
	return s.authenticate(ctx, "register", func() (*api.AuthResponse, error) {
		return s.auth.Register(ctx, api.RegisterRequest{
			Username: strings.TrimSpace(username),
			Email:    strings.TrimSpace(email),
			Password: password,
		})
	})
}

// Login reports failures in the same way as Register.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	if err := validation.ValidateCredentials(email, password); err != nil {
		return failure(err)
	}
	return s.authenticate(ctx, "login", func() (*api.AuthResponse, error) {
		return s.auth.Login(ctx, api.LoginRequest{Email: strings.TrimSpace(email), Password: password})
	})
}

// authenticate runs call with IsBusy set, then writes the session to storage
// before it becomes visible in memory.
func (s *Store) authenticate(ctx context.Context, op string, call func() (*api.AuthResponse, error)) Result {
	s.update(func(st *Session) { st.IsBusy = true })

	resp, err := call()
	if err == nil {
		err = s.persist(ctx, resp)
	}
	if err != nil {
		s.update(func(st *Session) { st.IsBusy = false })
		s.log.Warn().Err(err).Str("op", op).Msg("Authentication failed")
		return failure(err)
	}

	identity := resp.Identity
	s.update(func(st *Session) {
		st.Identity = &identity
		st.Credential = resp.Token
		st.IsBusy = false
	})
	s.log.Info().Str("op", op).Str("user_id", identity.ID).Msg("Authenticated")
	return Result{Success: true}
}

func (s *Store) persist(ctx context.Context, resp *api.AuthResponse) error {
	raw, err := json.Marshal(resp.Identity)
	if err != nil {
		return errors.NewStorageError("encode user", err)
	}
	if err := s.kv.Put(ctx, map[string]string{KeyToken: resp.Token, KeyUser: string(raw)}); err != nil {
		return errors.NewStorageError("save session", err)
	}
	return nil
}

// Logout forgets the session. Memory is cleared even when storage fails;
// the storage error is returned so the caller can surface it.
func (s *Store) Logout(ctx context.Context) error {
	err := s.kv.Delete(ctx, KeyToken, KeyUser)

	s.update(func(st *Session) {
		st.Identity = nil
		st.Credential = ""
	})

	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear persisted session")
		return errors.NewStorageError("clear session", err)
	}
	s.log.Info().Msg("Logged out")
	return nil
}
