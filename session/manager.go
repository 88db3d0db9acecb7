// Package session owns the authentication token and identity of the dashboard user.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/contentai-pro/dashboard-core/tokenstore"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// DefaultAuthTimeout bounds Restore, Login and Register.
const DefaultAuthTimeout = 10 * time.Second

// remote logouts are best effort and are never retried
const remoteLogoutTimeout = 10 * time.Second

// bounds purging a rejected token, which runs after the auth deadline may have passed
const purgeTimeout = 5 * time.Second

// Observer is told about every session transition, in order. It is called without the
// session lock held but must not call back into mutating Manager methods.
type Observer func(prev, next Snapshot)

type Options struct {
	// AuthTimeout bounds each Restore, Login and Register. Defaults to DefaultAuthTimeout.
	AuthTimeout time.Duration
	// LogoutWorkers is how many remote logouts can be in flight. Defaults to 1.
	LogoutWorkers int
	// PrometheusSubsystem registers session metrics under this subsystem when non-empty.
	PrometheusSubsystem string
}

// Manager is the single owner of the session. Everyone else reads snapshots of it.
type Manager struct {
	backend auth.Backend
	store   tokenstore.Store
	timeout time.Duration
	pool    *internal.WorkerPool
	metrics *metrics

	mu       sync.Mutex
	state    Snapshot
	version  int // bumped on every committed transition
	restored bool

	// held while observers run, so transitions are delivered in commit order
	emitMu    sync.Mutex
	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// NewManager returns a loading, unauthenticated session. Call Restore once at startup.
func NewManager(backend auth.Backend, store tokenstore.Store, opts Options) *Manager {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = DefaultAuthTimeout
	}
	if opts.LogoutWorkers <= 0 {
		opts.LogoutWorkers = 1
	}
	m := &Manager{
		backend:   backend,
		store:     store,
		timeout:   opts.AuthTimeout,
		pool:      internal.NewWorkerPool(opts.LogoutWorkers),
		state:     unauthenticated(true),
		observers: make(map[int]Observer),
	}
	if opts.PrometheusSubsystem != "" {
		m.metrics = newMetrics(opts.PrometheusSubsystem)
	}
	m.pool.Start()
	return m
}

// Close waits for queued remote logouts to finish. The Manager must not be used afterwards.
func (m *Manager) Close() {
	m.pool.Stop()
	m.metrics.unregister()
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every future transition. Call the returned function to stop.
func (m *Manager) Subscribe(fn Observer) (unsubscribe func()) {
	m.obsMu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.obsMu.Unlock()
	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// Restore resolves the persisted token, if any, into a session. Failures are never
// returned: the persisted token is purged and the session is left unauthenticated.
// Only the first call does anything; later calls return the current snapshot.
func (m *Manager) Restore(ctx context.Context) Snapshot {
	m.mu.Lock()
	if m.restored {
		s := m.state
		m.mu.Unlock()
		return s
	}
	m.restored = true
	startVersion := m.version
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = internal.OperationContext(ctx, "restore")
	ctx, span := internal.StartSpan(ctx, "session.Restore")
	defer span.End()

	user, token, err := m.resolvePersisted(ctx)
	m.metrics.observe("restore", err)
	span.RecordError(err)

	m.mu.Lock()
	if m.version != startVersion {
		// a login or logout landed while we were resolving: it wins
		internal.DecorateLogger(ctx, logger.Debug()).Msg("session changed during restore, keeping it")
		next := m.state
		next.Loading = false
		m.commitAndUnlock(next)
		return next
	}
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoToken) {
			internal.DecorateLogger(ctx, logger.Info()).Err(err).Msg("persisted session is not valid, clearing it")
			pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), purgeTimeout)
			clearErr := m.store.Clear(pctx)
			pcancel()
			if clearErr != nil {
				internal.DecorateLogger(ctx, logger.Warn()).Err(clearErr).Msg("failed to purge persisted token")
				internal.ReportError(ctx, "restore", clearErr)
			}
		}
		next := unauthenticated(false)
		m.commitAndUnlock(next)
		return next
	}
	internal.SetContextUserID(ctx, user.ID)
	internal.DecorateLogger(ctx, logger.Info()).Msg("session restored")
	next := authenticated(*user, token, false)
	m.commitAndUnlock(next)
	return next
}

func (m *Manager) resolvePersisted(ctx context.Context) (*auth.User, string, error) {
	token, err := m.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, tokenstore.ErrNoToken) {
			internal.ReportError(ctx, "restore", err)
		}
		return nil, "", err
	}
	user, err := m.backend.CurrentUser(ctx, token)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login authenticates with email and password. On failure the session is left exactly as
// it was and the backend error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = internal.OperationContext(ctx, "login")
	ctx, span := internal.StartSpan(ctx, "session.Login")
	defer span.End()

	res, err := m.backend.Login(ctx, email, password)
	if err != nil {
		m.metrics.observe("login", err)
		span.RecordError(err)
		m.logFailure(ctx, "login", err)
		return auth.User{}, err
	}
	user, err := m.establish(ctx, "login", res)
	m.metrics.observe("login", err)
	span.RecordError(err)
	return user, err
}

// Register creates an account and authenticates as it. auth.ErrEmailAlreadyExists is
// returned if the email is taken.
func (m *Manager) Register(ctx context.Context, profile auth.Profile) (auth.User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = internal.OperationContext(ctx, "register")
	ctx, span := internal.StartSpan(ctx, "session.Register")
	defer span.End()

	res, err := m.backend.Register(ctx, profile)
	if err != nil {
		m.metrics.observe("register", err)
		span.RecordError(err)
		m.logFailure(ctx, "register", err)
		return auth.User{}, err
	}
	user, err := m.establish(ctx, "register", res)
	m.metrics.observe("register", err)
	span.RecordError(err)
	return user, err
}

// establish persists the token and switches the session to res. Both happen under the
// session lock; if the token cannot be persisted the session is not changed.
func (m *Manager) establish(ctx context.Context, op string, res *auth.Response) (auth.User, error) {
	internal.SetContextUserID(ctx, res.User.ID)
	m.mu.Lock()
	if err := m.store.Set(ctx, res.Token, tokenstore.Retention); err != nil {
		m.mu.Unlock()
		internal.DecorateLogger(ctx, logger.Error()).Err(err).Msg("failed to persist session token")
		internal.ReportError(ctx, op, err)
		return auth.User{}, fmt.Errorf("%s: persist session: %w", op, err)
	}
	next := authenticated(res.User, res.Token, m.state.Loading)
	m.commitAndUnlock(next)
	internal.DecorateLogger(ctx, logger.Info()).Msg("session established")
	return next.User(), nil
}

// Logout clears the session and the persisted token before returning. The backend is
// told afterwards, in the background; its failure does not undo the local logout.
func (m *Manager) Logout(ctx context.Context) {
	ctx = internal.OperationContext(ctx, "logout")
	m.mu.Lock()
	prev := m.state
	internal.SetContextUserID(ctx, prev.UserID)
	if err := m.store.Clear(ctx); err != nil {
		internal.DecorateLogger(ctx, logger.Warn()).Err(err).Msg("failed to purge persisted token")
		internal.ReportError(ctx, "logout", err)
	}
	m.commitAndUnlock(unauthenticated(prev.Loading))
	m.metrics.observe("logout", nil)

	if prev.Token == "" {
		return
	}
	token := prev.Token
	queued := m.pool.TryQueue(func() {
		rctx, cancel := context.WithTimeout(context.Background(), remoteLogoutTimeout)
		defer cancel()
		if err := m.backend.Logout(rctx, token); err != nil {
			logger.Warn().Err(err).Str("u", prev.UserID).Msg("remote logout failed")
		}
	})
	if !queued {
		internal.DecorateLogger(ctx, logger.Warn()).Msg("remote logout dropped: too many in flight")
	}
}

// UpdateUser merges the non-empty fields of update into the local identity. It does not
// talk to the backend, see SaveProfile. Does nothing when unauthenticated.
func (m *Manager) UpdateUser(update auth.UserUpdate) Snapshot {
	m.mu.Lock()
	if !m.state.IsAuthenticated {
		s := m.state
		m.mu.Unlock()
		logger.Debug().Msg("UpdateUser: not authenticated, ignoring")
		return s
	}
	next := authenticated(update.Apply(m.state.User()), m.state.Token, m.state.Loading)
	m.commitAndUnlock(next)
	return next
}

// SaveProfile sends update to the backend and, if it is accepted, merges the result into
// the local identity.
func (m *Manager) SaveProfile(ctx context.Context, update auth.UserUpdate) (auth.User, error) {
	ctx = internal.OperationContext(ctx, "save_profile")
	ctx, span := internal.StartSpan(ctx, "session.SaveProfile")
	defer span.End()

	snap := m.Snapshot()
	if !snap.IsAuthenticated {
		return auth.User{}, fmt.Errorf("save profile: %w", auth.ErrInvalidToken)
	}
	internal.SetContextUserID(ctx, snap.UserID)
	user, err := m.backend.UpdateProfile(ctx, snap.Token, update)
	m.metrics.observe("save_profile", err)
	if err != nil {
		span.RecordError(err)
		m.logFailure(ctx, "save_profile", err)
		return auth.User{}, err
	}
	m.mu.Lock()
	if m.state.Token != snap.Token {
		// logged out or switched user while saving
		m.mu.Unlock()
		return *user, nil
	}
	next := authenticated(auth.UserUpdate{
		Name:    user.Name,
		Email:   user.Email,
		Company: user.Company,
		Website: user.Website,
	}.Apply(m.state.User()), m.state.Token, m.state.Loading)
	m.commitAndUnlock(next)
	return next.User(), nil
}

// commitAndUnlock installs next as the session state, releases m.mu and tells observers.
// Must be called with m.mu held.
func (m *Manager) commitAndUnlock(next Snapshot) {
	prev := m.state
	m.state = next
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.version++
	internal.Assert("authenticated session has a token and a user", !next.IsAuthenticated || (next.Token != "" && next.UserID != ""))
	m.metrics.setAuthenticated(next.IsAuthenticated)
	// take emitMu before releasing mu so a later commit cannot overtake this one
	m.emitMu.Lock()
	m.mu.Unlock()
	defer m.emitMu.Unlock()

	m.obsMu.Lock()
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	m.obsMu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		m.obsMu.Lock()
		fn, ok := m.observers[id]
		m.obsMu.Unlock()
		if ok {
			fn(prev, next)
		}
	}
}

func (m *Manager) logFailure(ctx context.Context, op string, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) && !errors.Is(err, auth.ErrNetworkFailure) {
		// expected: bad password, taken email, ...
		internal.DecorateLogger(ctx, logger.Info()).Err(err).Msg(op + " rejected")
		return
	}
	internal.DecorateLogger(ctx, logger.Warn()).Err(err).Msg(op + " failed")
	if !errors.As(err, &authErr) {
		internal.ReportError(ctx, op, err)
	}
}
