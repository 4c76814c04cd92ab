package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

var (
	// ErrAlreadyMounted is returned by a second Mount
	ErrAlreadyMounted = errors.New("mirror: already mounted")
	// ErrUnmounted is returned by Mount after Unmount
	ErrUnmounted = errors.New("mirror: unmounted")
)

// Source is the slice of the auth provider the mirror consumes.
// *authclient.Client satisfies it.
type Source interface {
	GetUser(ctx context.Context) (*authclient.User, error)
	OnAuthStateChange(fn authclient.Listener) *authclient.Subscription
	SignOut(ctx context.Context) error
}

// Navigator moves the user-agent to another page
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(path string)

// Navigate calls f
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}

// Option configures a Mirror
type Option func(*Mirror)

// WithNavigator sets where SignOut sends the user-agent
func WithNavigator(n Navigator) Option {
	return func(m *Mirror) {
		m.navigator = n
	}
}

// WithLoginPath overrides the post-sign-out destination (default "/login")
func WithLoginPath(path string) Option {
	return func(m *Mirror) {
		if path != "" {
			m.loginPath = path
		}
	}
}

// WithLogger sets a structured logger for transitions
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

// WithOnChange registers fn to run after every snapshot change.
// fn runs on the goroutine that caused the change and must not call SignOut.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Mirror) {
		m.onChange = fn
	}
}

// Mirror keeps a local snapshot of the signed-in user in sync with the provider
type Mirror struct {
	src       Source
	navigator Navigator
	loginPath string
	logger    *slog.Logger
	onChange  func(Snapshot)

	mu        sync.Mutex
	snapshot  Snapshot
	mounted   bool
	torn      bool
	sub       *authclient.Subscription
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once

	notifyMu sync.Mutex
}

// New creates an unmounted mirror in the Loading state
func New(src Source, opts ...Option) *Mirror {
	m := &Mirror{
		src:       src,
		loginPath: "/login",
		snapshot:  Loading(),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mount subscribes to session changes and starts the initial user fetch.
// The fetch runs in the background; Ready is closed once it settles.
func (m *Mirror) Mount(ctx context.Context) error {
	m.mu.Lock()
	if m.torn {
		m.mu.Unlock()
		return ErrUnmounted
	}
	if m.mounted {
		m.mu.Unlock()
		return ErrAlreadyMounted
	}
	m.mounted = true
	fetchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	sub := m.src.OnAuthStateChange(m.handleEvent)

	m.mu.Lock()
	if m.torn {
		// Unmounted while subscribing
		m.mu.Unlock()
		sub.Unsubscribe()
		cancel()
		return ErrUnmounted
	}
	m.sub = sub
	m.mu.Unlock()

	go m.fetch(fetchCtx)
	return nil
}

// Unmount stops all updates: the listener is removed and a pending fetch
// result is discarded. Safe to call more than once.
func (m *Mirror) Unmount() {
	m.mu.Lock()
	if m.torn {
		m.mu.Unlock()
		return
	}
	m.torn = true
	sub, cancel := m.sub, m.cancel
	m.sub, m.cancel = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	sub.Unsubscribe()
	m.debug("mirror unmounted")
}

// Snapshot returns the current view
func (m *Mirror) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Ready is closed when the initial fetch settles, successfully or not
func (m *Mirror) Ready() <-chan struct{} {
	return m.ready
}

// SignOut signs out at the provider, clears the snapshot and then navigates
// to the login path. The provider error, if any, is returned after both.
func (m *Mirror) SignOut(ctx context.Context) error {
	err := m.src.SignOut(ctx)
	if err != nil {
		m.warn("provider sign-out failed", "error", err)
	}
	m.apply(Anonymous(), "sign_out")
	if m.navigator != nil {
		m.navigator.Navigate(m.loginPath)
	}
	return err
}

func (m *Mirror) fetch(ctx context.Context) {
	defer m.readyOnce.Do(func() { close(m.ready) })

	user, err := m.src.GetUser(ctx)
	if err != nil {
		if !errors.Is(err, authclient.ErrNoSession) {
			m.warn("initial user fetch failed", "error", err)
		}
		m.apply(Anonymous(), "initial_fetch")
		return
	}
	m.apply(Authenticated(user), "initial_fetch")
}

func (m *Mirror) handleEvent(event authclient.Event, session *authclient.Session) {
	m.apply(snapshotFromSession(session), string(event))
}

// apply writes next unless the mirror was torn down. Writes land in settle order.
func (m *Mirror) apply(next Snapshot, cause string) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.torn {
		m.mu.Unlock()
		return
	}
	prev := m.snapshot
	m.snapshot = next
	m.mu.Unlock()

	if prev.Equal(next) {
		return
	}
	m.debug("session snapshot changed", "cause", cause, "from", prev.State().String(), "to", next)
	if m.onChange != nil {
		m.onChange(next)
	}
}

func (m *Mirror) debug(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Mirror) warn(msg string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
