package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zimship/csrf"
	"zimship/prefs"
)

type fakeAPI struct {
	admin    bool
	emails   []map[string]any
	reviews  []map[string]any
	csrfSeen map[string]bool
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	exp := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	authed := func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer tok-1" }
	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{
			"session": map[string]string{"accessToken": "tok-1", "expiresAt": exp},
			"user":    map[string]string{"id": "user-1", "email": "tendai@example.com"},
		})
	})
	mux.HandleFunc("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			reply(w, http.StatusOK, map[string]any{"session": nil, "user": nil})
			return
		}
		reply(w, http.StatusOK, map[string]any{
			"session": map[string]string{"accessToken": "tok-1", "expiresAt": exp},
			"user":    map[string]string{"id": "user-1", "email": "tendai@example.com"},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]bool{"success": true})
	})
	mux.HandleFunc("/api/auth/admin", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]bool{"isAdmin": f.admin})
	})
	mux.HandleFunc("/api/shipments", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"items": []map[string]string{
			{"trackingNumber": "ZIMSHIP-00042", "status": "in_transit", "destination": "Bulawayo"},
		}})
	})
	mux.HandleFunc("/api/shipments/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "ZIMSHIP-00042") {
			reply(w, http.StatusOK, map[string]string{"trackingNumber": "ZIMSHIP-00042", "status": "in_transit", "destination": "Bulawayo"})
			return
		}
		reply(w, http.StatusNotFound, map[string]string{"error": "shipment not found"})
	})
	mux.HandleFunc("/api/send-email", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.emails = append(f.emails, body)
		reply(w, http.StatusOK, map[string]any{"success": true, "id": "em_1"})
	})
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		f.csrfSeen = map[string]bool{"form-1": true}
		reply(w, http.StatusOK, map[string]string{"token": "form-1"})
	})
	mux.HandleFunc("/api/reviews", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		tok, _ := body["csrfToken"].(string)
		if !f.csrfSeen[tok] {
			reply(w, http.StatusForbidden, map[string]string{"error": "invalid or expired form token"})
			return
		}
		delete(f.csrfSeen, tok)
		f.reviews = append(f.reviews, body)
		reply(w, http.StatusCreated, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, store prefs.Store, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out, store)
	return out.String(), err
}

func TestCurrencyPersistsAcrossRuns(t *testing.T) {
	store := prefs.NewMemoryStore()
	if _, err := runCLI(t, store, "currency", "usd"); err != nil {
		t.Fatalf("set currency: %v", err)
	}
	out, err := runCLI(t, store, "currency")
	if err != nil {
		t.Fatalf("list currencies: %v", err)
	}
	if !strings.Contains(out, "* $ USD") {
		t.Fatalf("expected USD selected, got:\n%s", out)
	}
	if _, err := runCLI(t, store, "currency", "JPY"); !errors.Is(err, prefs.ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestQuoteUsesSelectedCurrency(t *testing.T) {
	store := prefs.NewMemoryStore()
	out, err := runCLI(t, store, "quote", "--city", "Harare", "--item", "drum")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !strings.Contains(out, "£260.00") {
		t.Fatalf("expected GBP total, got:\n%s", out)
	}

	if _, err := runCLI(t, store, "currency", "USD"); err != nil {
		t.Fatalf("set currency: %v", err)
	}
	out, err = runCLI(t, store, "quote", "--city", "Harare", "--item", "drum:1")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !strings.Contains(out, "$330.20") {
		t.Fatalf("expected USD total, got:\n%s", out)
	}

	if _, err := runCLI(t, store, "quote", "--city", "Harare", "--item", "drum", "--postcode", "NOT A POSTCODE"); err == nil {
		t.Fatalf("expected postcode validation error")
	}
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in   string
		kind string
		size string
		qty  int
	}{
		{"drum", "drum", "", 1},
		{"drum:3", "drum", "", 3},
		{"box:large", "box", "large", 1},
		{"Trunk:standard:2", "trunk", "standard", 2},
	}
	for _, tc := range tests {
		it, err := parseItem(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if string(it.Kind) != tc.kind || it.Size != tc.size || it.Quantity != tc.qty {
			t.Fatalf("%s: got %+v", tc.in, it)
		}
	}
	if _, err := parseItem("box:a:b:2"); err == nil {
		t.Fatalf("expected error for too many parts")
	}
}

func TestThemeToggleCycles(t *testing.T) {
	store := prefs.NewMemoryStore()
	want := []string{"theme light (light)", "theme dark (dark)", "theme system (dark)"}
	for _, w := range want {
		out, err := runCLI(t, store, "--os-scheme", "dark", "theme", "toggle")
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if strings.TrimSpace(out) != w {
			t.Fatalf("expected %q, got %q", w, out)
		}
	}
}

func TestProtectedCommandsNeedSession(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	store := prefs.NewMemoryStore()

	if _, err := runCLI(t, store, "--api", srv.URL, "whoami"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("expected errNotSignedIn, got %v", err)
	}

	out, err := runCLI(t, store, "--api", srv.URL, "login", "--email", "tendai@example.com", "--password", "secret123")
	if err != nil || !strings.Contains(out, "Signed in as tendai@example.com") {
		t.Fatalf("login: %q %v", out, err)
	}

	api.admin = true
	out, err = runCLI(t, store, "--api", srv.URL, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "tendai@example.com (user-1)") || !strings.Contains(out, "role: admin") {
		t.Fatalf("unexpected whoami output:\n%s", out)
	}

	out, err = runCLI(t, store, "--api", srv.URL, "shipments")
	if err != nil || !strings.Contains(out, "ZIMSHIP-00042") {
		t.Fatalf("shipments: %q %v", out, err)
	}

	if _, err := runCLI(t, store, "--api", srv.URL, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := runCLI(t, store, "--api", srv.URL, "shipments"); !errors.Is(err, errNotSignedIn) {
		t.Fatalf("expected errNotSignedIn after logout, got %v", err)
	}
}

func TestTrackIsPublic(t *testing.T) {
	srv := (&fakeAPI{}).server(t)
	store := prefs.NewMemoryStore()

	out, err := runCLI(t, store, "--api", srv.URL, "track", "ZIMSHIP-00042")
	if err != nil || !strings.Contains(out, "in_transit") {
		t.Fatalf("track: %q %v", out, err)
	}
	if _, err := runCLI(t, store, "--api", srv.URL, "track", "ZIMSHIP-11111"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestContactRefusesReplayedToken(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	store := prefs.NewMemoryStore()

	if _, err := runCLI(t, store, "--api", srv.URL, "contact", "--email", "guest@example.com", "--message", "hi"); !errors.Is(err, errNoFormToken) {
		t.Fatalf("expected errNoFormToken without --token, got %v", err)
	}

	out, err := runCLI(t, store, "--api", srv.URL, "contact", "--prepare")
	if err != nil {
		t.Fatalf("contact prepare: %v", err)
	}
	token := strings.TrimSpace(strings.TrimPrefix(out, "Form token:"))
	submit := []string{"--api", srv.URL, "contact", "--token", token, "--email", "guest@example.com", "--message", "hi"}
	if _, err := runCLI(t, store, submit...); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := runCLI(t, store, submit...); !errors.Is(err, csrf.ErrInvalidToken) {
		t.Fatalf("expected replayed token to be refused, got %v", err)
	}

	if _, err := runCLI(t, store, "--api", srv.URL, "contact", "--prepare"); err != nil {
		t.Fatalf("contact prepare: %v", err)
	}
	forged := []string{"--api", srv.URL, "contact", "--token", "not-the-token", "--email", "guest@example.com", "--message", "hi"}
	if _, err := runCLI(t, store, forged...); !errors.Is(err, csrf.ErrInvalidToken) {
		t.Fatalf("expected wrong token to be refused, got %v", err)
	}
	if len(api.emails) != 1 {
		t.Fatalf("expected exactly one email sent, got %d", len(api.emails))
	}
}

func TestContactAndReviewSubmit(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	store := prefs.NewMemoryStore()

	out, err := runCLI(t, store, "--api", srv.URL, "contact", "--prepare")
	if err != nil {
		t.Fatalf("contact prepare: %v", err)
	}
	token := strings.TrimSpace(strings.TrimPrefix(out, "Form token:"))
	if token == "" {
		t.Fatalf("expected a form token, got %q", out)
	}
	if len(api.emails) != 0 {
		t.Fatalf("prepare should not send, got %+v", api.emails)
	}

	submit := []string{"--api", srv.URL, "contact", "--token", token, "--email", "guest@example.com", "--message", "When is the next sailing?"}
	if _, err := runCLI(t, store, submit...); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if len(api.emails) != 1 || api.emails[0]["template"] != "contact" {
		t.Fatalf("unexpected emails %+v", api.emails)
	}
	if _, ok, _ := store.Get("csrf_token"); ok {
		t.Fatalf("form token should be consumed after submit")
	}

	_, err = runCLI(t, store, "--api", srv.URL, "review", "--name", "Rudo", "--rating", "5", "--comment", "Arrived safely")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(api.reviews) != 1 || api.reviews[0]["csrfToken"] != "form-1" {
		t.Fatalf("unexpected reviews %+v", api.reviews)
	}
}
