package prefs

import (
	"path/filepath"
	"testing"
)

func TestLevelDBStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := OpenLevelDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok, err := s.Get(ThemeKey); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := NewCurrencyPreference(s).Set("ZWL"); err != nil {
		t.Fatalf("set currency: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenLevelDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := NewCurrencyPreference(s).Current().Code; got != "ZWL" {
		t.Fatalf("expected ZWL after reopen, got %s", got)
	}
	if err := s.Delete(CurrencyKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(CurrencyKey); ok {
		t.Fatal("expected key removed")
	}
}
