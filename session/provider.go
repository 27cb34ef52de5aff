package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/decred/slog"
)

// ErrClosed is returned when the provider is used after Close.
var ErrClosed = errors.New("session: provider closed")

// Session is the cached, possibly stale copy of the auth service's session.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// User is the identity attached to a Session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Event names an auth state transition.
type Event string

const (
	EventInitial   Event = "INITIAL_SESSION"
	EventSignedIn  Event = "SIGNED_IN"
	EventSignedOut Event = "SIGNED_OUT"
	EventRefreshed Event = "TOKEN_REFRESHED"
)

// Change is one auth state notification. Session and User are nil when
// signed out.
type Change struct {
	Event   Event
	Session *Session
	User    *User
}

// AuthService is the external auth boundary the provider mirrors.
type AuthService interface {
	GetSession(ctx context.Context) (*Session, *User, error)
	SignIn(ctx context.Context, email, password string) (*Session, *User, error)
	SignOut(ctx context.Context) error
	OnChange(fn func(Change)) (unsubscribe func())
}

// AdminChecker is the remote role check keyed by user id.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// State is an immutable snapshot of the provider.
type State struct {
	Loading bool
	Session *Session
	User    *User
	IsAdmin bool
}

type Option func(*Provider)

func WithLogger(log slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// Provider mirrors the auth service's session into local state and derives
// the admin flag. Construct with New, call Start once, Close at shutdown.
type Provider struct {
	auth  AuthService
	admin AdminChecker
	log   slog.Logger

	mu          sync.Mutex
	state       State
	generation  uint64
	started     bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

func New(auth AuthService, admin AdminChecker, opts ...Option) *Provider {
	p := &Provider{
		auth:  auth,
		admin: admin,
		log:   slog.Disabled,
		state: State{Loading: true},
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start fetches the current session once and subscribes to change
// notifications until Close. A failed fetch leaves the user signed out.
// Loading is false when Start returns.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	sess, user, err := p.auth.GetSession(ctx)
	if err != nil {
		p.log.Warnf("Unable to fetch initial session: %v", err)
		sess, user = nil, nil
	}
	p.apply(Change{Event: EventInitial, Session: sess, User: user})

	unsubscribe := p.auth.OnChange(p.apply)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	return nil
}

// Close tears down the change subscription. It is safe to call more than
// once.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	cancel := p.cancel
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
}

// State returns the current snapshot.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SignIn forwards credentials and returns the auth service's result as is.
// The cached session is updated by the resulting change notification.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, *User, error) {
	return p.auth.SignIn(ctx, email, password)
}

// SignOut asks the auth service to end the session and clears the admin
// flag locally whatever the outcome.
func (p *Provider) SignOut(ctx context.Context) error {
	err := p.auth.SignOut(ctx)

	p.mu.Lock()
	changed := p.state.IsAdmin
	p.state.IsAdmin = false
	st := p.state
	p.mu.Unlock()

	if changed {
		p.notify(st)
	}
	return err
}

// Subscribe registers fn to receive every new snapshot synchronously.
func (p *Provider) Subscribe(fn func(State)) (unsubscribe func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// apply replaces the cached session and recomputes the admin flag. A newer
// change supersedes any admin check still running for an older one.
func (p *Provider) apply(c Change) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.generation++
	gen := p.generation
	p.state = State{Session: c.Session, User: c.User}
	st := p.state
	ctx := p.ctx
	p.mu.Unlock()

	p.log.Debugf("Auth change %s", c.Event)
	p.notify(st)

	if c.User == nil || p.admin == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	isAdmin, err := p.admin.IsAdmin(ctx, c.User.ID)
	if err != nil {
		p.log.Warnf("Admin check for %s failed: %v", c.User.ID, err)
		isAdmin = false
	}

	p.mu.Lock()
	if gen != p.generation || p.closed {
		p.mu.Unlock()
		return
	}
	p.state.IsAdmin = isAdmin
	st = p.state
	p.mu.Unlock()

	if isAdmin {
		p.notify(st)
	}
}

func (p *Provider) notify(st State) {
	p.subMu.Lock()
	fns := make([]func(State), 0, len(p.subs))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
