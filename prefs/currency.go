package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// CurrencyKey is the storage key holding the JSON-encoded selection.
const CurrencyKey = "selectedCurrency"

// ErrUnknownCurrency is returned when selecting a code outside Currencies.
var ErrUnknownCurrency = errors.New("prefs: unknown currency")

// Currency is one selectable display currency with a static rate against GBP.
type Currency struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
}

// Currencies is the fixed set offered to customers. GBP is the base.
var Currencies = []Currency{
	{Code: "GBP", Symbol: "£", Name: "British Pound", Rate: 1},
	{Code: "USD", Symbol: "$", Name: "US Dollar", Rate: 1.27},
	{Code: "EUR", Symbol: "€", Name: "Euro", Rate: 1.17},
	{Code: "ZWL", Symbol: "Z$", Name: "Zimbabwean Dollar", Rate: 4500},
}

// LookupCurrency finds a currency by code, case-insensitively.
func LookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// Format converts amountGBP into c and renders it with two decimals.
func (c Currency) Format(amountGBP float64) string {
	return fmt.Sprintf("%s%.2f", c.Symbol, amountGBP*c.Rate)
}

// CurrencyPreference holds the selected display currency. Exactly one
// currency is selected at all times.
type CurrencyPreference struct {
	store Store

	mu      sync.Mutex
	current Currency
	subs    listeners[Currency]
}

// NewCurrencyPreference loads the persisted selection, falling back to GBP
// when storage is empty, unreadable or names an unknown code.
func NewCurrencyPreference(store Store) *CurrencyPreference {
	p := &CurrencyPreference{store: store, current: Currencies[0]}

	raw, ok, err := store.Get(CurrencyKey)
	if err != nil || !ok {
		return p
	}
	var saved Currency
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return p
	}
	if c, ok := LookupCurrency(saved.Code); ok {
		p.current = c
	}
	return p
}

func (p *CurrencyPreference) Current() Currency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Set selects code, persists it and notifies subscribers.
func (p *CurrencyPreference) Set(code string) error {
	c, ok := LookupCurrency(code)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("prefs: marshal currency: %w", err)
	}
	if err := p.store.Set(CurrencyKey, string(raw)); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = c
	p.mu.Unlock()

	p.subs.notify(c)
	return nil
}

// FormatPrice renders a GBP amount in the selected currency.
func (p *CurrencyPreference) FormatPrice(amountGBP float64) string {
	return p.Current().Format(amountGBP)
}

// Subscribe registers fn for every change and returns an unsubscribe func.
func (p *CurrencyPreference) Subscribe(fn func(Currency)) func() {
	return p.subs.add(fn)
}
