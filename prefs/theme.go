package prefs

import (
	"fmt"
	"sync"
)

// ThemeKey is the storage key holding the theme mode.
const ThemeKey = "theme"

// Theme is the user's chosen mode.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Scheme is an effective colour scheme.
type Scheme string

const (
	SchemeLight Scheme = "light"
	SchemeDark  Scheme = "dark"
)

// Next returns the mode after t in the light, dark, system cycle.
func (t Theme) Next() Theme {
	switch t {
	case ThemeLight:
		return ThemeDark
	case ThemeDark:
		return ThemeSystem
	default:
		return ThemeLight
	}
}

func (t Theme) valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// SchemeSource reports the operating system colour scheme.
type SchemeSource interface {
	Current() Scheme
	Watch(fn func(Scheme)) (stop func())
}

// Applier writes the resolved scheme to the presentation layer.
type Applier interface {
	Apply(Scheme)
}

// ThemeChange is delivered to subscribers on every mode or scheme change.
type ThemeChange struct {
	Theme    Theme
	Resolved Scheme
}

// ThemePreference holds the theme mode and keeps the applied scheme in sync
// with the OS while in system mode.
type ThemePreference struct {
	store   Store
	source  SchemeSource
	applier Applier

	mu        sync.Mutex
	theme     Theme
	osScheme  Scheme
	stopWatch func()
	subs      listeners[ThemeChange]
}

// NewThemePreference loads the persisted mode (defaulting to system),
// applies the resolved scheme and starts watching the OS scheme. Close stops
// the watch.
func NewThemePreference(store Store, source SchemeSource, applier Applier) *ThemePreference {
	p := &ThemePreference{
		store:    store,
		source:   source,
		applier:  applier,
		theme:    ThemeSystem,
		osScheme: SchemeLight,
	}
	if raw, ok, err := store.Get(ThemeKey); err == nil && ok && Theme(raw).valid() {
		p.theme = Theme(raw)
	}
	if source != nil {
		p.osScheme = source.Current()
		p.stopWatch = source.Watch(p.onSchemeChange)
	}
	p.apply(p.resolve(p.theme, p.osScheme))
	return p
}

func (p *ThemePreference) Current() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

// Resolved returns the effective scheme.
func (p *ThemePreference) Resolved() Scheme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(p.theme, p.osScheme)
}

// Set selects t explicitly.
func (p *ThemePreference) Set(t Theme) error {
	if !t.valid() {
		return fmt.Errorf("prefs: unknown theme %q", t)
	}
	if err := p.store.Set(ThemeKey, string(t)); err != nil {
		return err
	}

	p.mu.Lock()
	p.theme = t
	resolved := p.resolve(t, p.osScheme)
	p.mu.Unlock()

	p.apply(resolved)
	p.subs.notify(ThemeChange{Theme: t, Resolved: resolved})
	return nil
}

// Toggle advances to the next mode and returns it.
func (p *ThemePreference) Toggle() (Theme, error) {
	next := p.Current().Next()
	if err := p.Set(next); err != nil {
		return "", err
	}
	return next, nil
}

// Subscribe registers fn for every change and returns an unsubscribe func.
func (p *ThemePreference) Subscribe(fn func(ThemeChange)) func() {
	return p.subs.add(fn)
}

// Close stops listening for OS scheme changes.
func (p *ThemePreference) Close() {
	p.mu.Lock()
	stop := p.stopWatch
	p.stopWatch = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (p *ThemePreference) onSchemeChange(s Scheme) {
	p.mu.Lock()
	p.osScheme = s
	theme := p.theme
	p.mu.Unlock()

	if theme != ThemeSystem {
		return
	}
	p.apply(s)
	p.subs.notify(ThemeChange{Theme: ThemeSystem, Resolved: s})
}

func (p *ThemePreference) resolve(t Theme, osScheme Scheme) Scheme {
	switch t {
	case ThemeLight:
		return SchemeLight
	case ThemeDark:
		return SchemeDark
	default:
		return osScheme
	}
}

func (p *ThemePreference) apply(s Scheme) {
	if p.applier != nil {
		p.applier.Apply(s)
	}
}

// StaticScheme is a SchemeSource whose value is changed by calling Set. The
// CLI uses it with the scheme read from its environment.
type StaticScheme struct {
	mu      sync.Mutex
	current Scheme
	subs    listeners[Scheme]
}

func NewStaticScheme(initial Scheme) *StaticScheme {
	return &StaticScheme{current: initial}
}

func (s *StaticScheme) Current() Scheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *StaticScheme) Watch(fn func(Scheme)) func() {
	return s.subs.add(fn)
}

func (s *StaticScheme) Set(v Scheme) {
	s.mu.Lock()
	s.current = v
	s.mu.Unlock()
	s.subs.notify(v)
}
