package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zimship/prefs"
	"zimship/session"
)

type fakeAPI struct {
	admin   bool
	revoked map[string]bool
	logouts int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	exp := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	sessionFor := func(token string) map[string]any {
		return map[string]any{
			"session": map[string]string{"accessToken": token, "expiresAt": exp},
			"user":    map[string]string{"id": "user-1", "email": "user@example.com"},
		}
	}
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid email or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(sessionFor("tok-1"))
	})
	mux.HandleFunc("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")[len("Bearer "):]
		if f.revoked[token] {
			_ = json.NewEncoder(w).Encode(map[string]any{"session": nil, "user": nil})
			return
		}
		_ = json.NewEncoder(w).Encode(sessionFor(token))
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logouts++
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	mux.HandleFunc("/api/auth/admin", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"isAdmin": f.admin})
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, prefs.Store) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	store := prefs.NewMemoryStore()
	return New(srv.URL, store), store
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	api := &fakeAPI{revoked: map[string]bool{}}
	c, store := newTestClient(t, api)

	var events []session.Event
	unsub := c.OnChange(func(ch session.Change) { events = append(events, ch.Event) })
	defer unsub()

	sess, user, err := c.SignIn(context.Background(), "user@example.com", "correct horse")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.AccessToken != "tok-1" || user.ID != "user-1" {
		t.Fatalf("unexpected session %+v %+v", sess, user)
	}
	if _, ok, _ := store.Get(StorageKey); !ok {
		t.Fatalf("expected session to be cached")
	}
	if len(events) != 1 || events[0] != session.EventSignedIn {
		t.Fatalf("unexpected events %v", events)
	}

	// A fresh client over the same store picks the session back up.
	again := New(c.baseURL, store)
	_, user, err = again.GetSession(context.Background())
	if err != nil || user == nil || user.Email != "user@example.com" {
		t.Fatalf("expected restored session, got %+v %v", user, err)
	}
}

func TestSignInRejected(t *testing.T) {
	c, store := newTestClient(t, &fakeAPI{})
	_, _, err := c.SignIn(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("expected ErrBadStatus, got %v", err)
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Fatalf("failed sign in must not cache anything")
	}
}

func TestGetSessionClearsRevokedToken(t *testing.T) {
	api := &fakeAPI{revoked: map[string]bool{}}
	c, store := newTestClient(t, api)
	if _, _, err := c.SignIn(context.Background(), "user@example.com", "correct horse"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	api.revoked["tok-1"] = true
	sess, user, err := c.GetSession(context.Background())
	if err != nil || sess != nil || user != nil {
		t.Fatalf("expected signed out, got %+v %+v %v", sess, user, err)
	}
	if _, ok, _ := store.Get(StorageKey); ok {
		t.Fatalf("revoked session should be dropped")
	}
}

func TestSignOutClearsEvenWithoutServer(t *testing.T) {
	api := &fakeAPI{revoked: map[string]bool{}}
	srv := httptest.NewServer(api.handler())
	store := prefs.NewMemoryStore()
	c := New(srv.URL, store)
	if _, _, err := c.SignIn(context.Background(), "user@example.com", "correct horse"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	srv.Close()

	var got []session.Event
	c.OnChange(func(ch session.Change) { got = append(got, ch.Event) })
	if err := c.SignOut(context.Background()); err == nil {
		t.Fatalf("expected the remote error to be reported")
	}
	if tok, _ := c.Token(); tok != "" {
		t.Fatalf("expected local session cleared, still have %q", tok)
	}
	if len(got) != 1 || got[0] != session.EventSignedOut {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestProviderDerivesAdminFromClient(t *testing.T) {
	api := &fakeAPI{admin: true, revoked: map[string]bool{}}
	c, _ := newTestClient(t, api)
	if _, _, err := c.SignIn(context.Background(), "user@example.com", "correct horse"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	p := session.New(c, c)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Close()

	st := p.State()
	if st.Loading || st.User == nil || !st.IsAdmin {
		t.Fatalf("unexpected state %+v", st)
	}

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if st := p.State(); st.User != nil || st.IsAdmin {
		t.Fatalf("expected signed out state, got %+v", st)
	}
	if api.logouts != 1 {
		t.Fatalf("expected one logout call, got %d", api.logouts)
	}
}

func TestIsAdminRequiresMatchingUser(t *testing.T) {
	c, _ := newTestClient(t, &fakeAPI{admin: true, revoked: map[string]bool{}})
	if _, err := c.IsAdmin(context.Background(), "user-1"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if _, _, err := c.SignIn(context.Background(), "user@example.com", "correct horse"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := c.IsAdmin(context.Background(), "someone-else"); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn for other user, got %v", err)
	}
}
