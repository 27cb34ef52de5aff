// Package authclient talks to the API's /api/auth endpoints and keeps the
// signed-in session in a local prefs store so it survives restarts.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"

	"zimship/prefs"
	"zimship/session"
)

// StorageKey is the prefs key holding the cached session.
const StorageKey = "auth_session"

var (
	ErrNotSignedIn = errors.New("authclient: not signed in")
	ErrBadStatus   = errors.New("authclient: unexpected status")
)

type storedSession struct {
	Session session.Session `json:"session"`
	User    session.User    `json:"user"`
}

type sessionPayload struct {
	Session *struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   string `json:"expiresAt"`
	} `json:"session"`
	User *session.User `json:"user"`
}

// Client implements session.AuthService and session.AdminChecker over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	store   prefs.Store
	log     slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(session.Change)
}

func New(baseURL string, store prefs.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		log:     slog.Disabled,
		subs:    make(map[int]func(session.Change)),
	}
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) WithLogger(log slog.Logger) *Client {
	c.log = log
	return c
}

func (c *Client) cached() (*storedSession, error) {
	raw, ok, err := c.store.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("authclient: read session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var st storedSession
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		c.log.Warnf("Discarding unreadable cached session: %v", err)
		_ = c.store.Delete(StorageKey)
		return nil, nil
	}
	return &st, nil
}

func (c *Client) save(st storedSession) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := c.store.Set(StorageKey, string(raw)); err != nil {
		return fmt.Errorf("authclient: store session: %w", err)
	}
	return nil
}

// Token returns the cached access token, if any.
func (c *Client) Token() (string, error) {
	st, err := c.cached()
	if err != nil || st == nil {
		return "", err
	}
	return st.Session.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, fmt.Errorf("authclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rep, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("authclient: %s %s: %w", method, path, err)
	}
	defer rep.Body.Close()

	data, err := io.ReadAll(io.LimitReader(rep.Body, 1<<20))
	if err != nil {
		return rep.StatusCode, fmt.Errorf("authclient: read response: %w", err)
	}
	if rep.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return rep.StatusCode, fmt.Errorf("%w %d: %s", ErrBadStatus, rep.StatusCode, e.Error)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return rep.StatusCode, fmt.Errorf("authclient: decode response: %w", err)
		}
	}
	return rep.StatusCode, nil
}

// Call sends one API request, attaching the cached token when signed in.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) error {
	token, err := c.Token()
	if err != nil {
		return err
	}
	_, err = c.do(ctx, method, path, token, body, out)
	return err
}

func toSession(p sessionPayload) (*session.Session, *session.User, error) {
	if p.Session == nil || p.User == nil {
		return nil, nil, nil
	}
	exp, err := time.Parse(time.RFC3339, p.Session.ExpiresAt)
	if err != nil {
		return nil, nil, fmt.Errorf("authclient: parse expiry: %w", err)
	}
	return &session.Session{AccessToken: p.Session.AccessToken, ExpiresAt: exp}, p.User, nil
}

// GetSession asks the API whether the cached token is still good. A
// rejected token is dropped from the cache.
func (c *Client) GetSession(ctx context.Context) (*session.Session, *session.User, error) {
	st, err := c.cached()
	if err != nil || st == nil {
		return nil, nil, err
	}
	var p sessionPayload
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/session", st.Session.AccessToken, nil, &p); err != nil {
		return nil, nil, err
	}
	sess, user, err := toSession(p)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		c.log.Debugf("Cached session rejected, clearing")
		if err := c.store.Delete(StorageKey); err != nil {
			return nil, nil, fmt.Errorf("authclient: clear session: %w", err)
		}
		return nil, nil, nil
	}
	return sess, user, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, *session.User, error) {
	var p sessionPayload
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &p); err != nil {
		return nil, nil, err
	}
	sess, user, err := toSession(p)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, fmt.Errorf("authclient: login returned no session")
	}
	if err := c.save(storedSession{Session: *sess, User: *user}); err != nil {
		return nil, nil, err
	}
	c.emit(session.Change{Event: session.EventSignedIn, Session: sess, User: user})
	return sess, user, nil
}

// SignOut revokes the token remotely and always clears the local cache.
func (c *Client) SignOut(ctx context.Context) error {
	st, err := c.cached()
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	_, rerr := c.do(ctx, http.MethodPost, "/api/auth/logout", st.Session.AccessToken, nil, nil)
	if err := c.store.Delete(StorageKey); err != nil {
		return fmt.Errorf("authclient: clear session: %w", err)
	}
	c.emit(session.Change{Event: session.EventSignedOut})
	return rerr
}

// IsAdmin asks the API for the caller's role. The server derives the user
// from the token; userID must match the cached session.
func (c *Client) IsAdmin(ctx context.Context, userID string) (bool, error) {
	st, err := c.cached()
	if err != nil {
		return false, err
	}
	if st == nil || st.User.ID != userID {
		return false, ErrNotSignedIn
	}
	var out struct {
		IsAdmin bool `json:"isAdmin"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/admin", st.Session.AccessToken, nil, &out); err != nil {
		return false, err
	}
	return out.IsAdmin, nil
}

func (c *Client) OnChange(fn func(session.Change)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ch session.Change) {
	c.mu.Lock()
	fns := make([]func(session.Change), 0, len(c.subs))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}
