package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/decred/slog"

	"zimship/authclient"
	"zimship/guard"
	"zimship/logging"
	"zimship/prefs"
	"zimship/session"
)

var errNotSignedIn = errors.New("not signed in, run `zimship login` first")

// app holds the per-invocation state shared by every command. Nothing is
// opened until a command needs it.
type app struct {
	ctx  context.Context
	opts *options
	out  io.Writer

	store    prefs.Store
	closers  []func() error
	bknd     *logging.Backend
	log      slog.Logger
	client   *authclient.Client
	currency *prefs.CurrencyPreference
	theme    *prefs.ThemePreference
	applied  prefs.Scheme
}

func (a *app) open() error {
	if a.client != nil {
		return nil
	}
	a.log = slog.Disabled
	if a.store == nil {
		dir, err := a.opts.profileDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create profile directory: %w", err)
		}
		bknd, err := logging.NewBackend(filepath.Join(dir, "logs", "zimship.log"), a.opts.DebugLevel, nil)
		if err != nil {
			return err
		}
		a.bknd = bknd
		a.closers = append(a.closers, bknd.Close)
		a.log = bknd.Logger("CLI")

		db, err := prefs.OpenLevelDB(filepath.Join(dir, "prefs"))
		if err != nil {
			return err
		}
		a.store = db
		a.closers = append(a.closers, db.Close)
	}

	a.client = authclient.New(a.opts.APIURL, a.store).WithLogger(a.subLogger("AUTH"))
	a.currency = prefs.NewCurrencyPreference(a.store)
	a.theme = prefs.NewThemePreference(a.store, prefs.NewStaticScheme(prefs.Scheme(a.opts.OSScheme)), a)
	a.closers = append(a.closers, func() error { a.theme.Close(); return nil })
	return nil
}

func (a *app) subLogger(subsys string) slog.Logger {
	if a.bknd == nil {
		return slog.Disabled
	}
	return a.bknd.Logger(subsys)
}

// Apply records the scheme the terminal should render with.
func (a *app) Apply(s prefs.Scheme) {
	a.applied = s
	a.log.Debugf("Applied %s scheme", s)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnf("Close: %v", err)
		}
	}
	a.closers = nil
}

// protected runs content only for a signed-in user, the way a guarded page
// only renders once the session provider has loaded.
func (a *app) protected(content func(session.State) error) error {
	if err := a.open(); err != nil {
		return err
	}
	p := session.New(a.client, a.client, session.WithLogger(a.subLogger("SESS")))
	defer p.Close()

	r := &termRenderer{out: a.out}
	guard.Run(p.State(), "", r)
	if err := p.Start(a.ctx); err != nil {
		return err
	}
	st := p.State()
	r.content = func() error { return content(st) }
	guard.Run(st, "", r)
	return r.err
}

// termRenderer draws guard outcomes as terminal output.
type termRenderer struct {
	out     io.Writer
	content func() error
	err     error
}

func (r *termRenderer) Placeholder() {}

func (r *termRenderer) Redirect(to string) {
	r.err = errNotSignedIn
}

func (r *termRenderer) Content() {
	if r.content != nil {
		r.err = r.content()
	}
}
