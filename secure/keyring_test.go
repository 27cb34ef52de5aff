package secure

import (
	"errors"
	"testing"
)

func mustKey(t *testing.T, env, version string) string {
	t.Helper()
	k, err := GenerateKey(env, version)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func TestKeyringRoundTrip(t *testing.T) {
	kr, err := NewKeyring("dev", mustKey(t, "dev", "v1"), "")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	sealed, err := kr.Encrypt("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if sealed == "JBSWY3DPEHPK3PXP" {
		t.Fatal("ciphertext equals plaintext")
	}
	again, _ := kr.Encrypt("JBSWY3DPEHPK3PXP")
	if again == sealed {
		t.Fatal("expected a fresh nonce per encryption")
	}

	plain, err := kr.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected original secret, got %q", plain)
	}
}

func TestKeyringFallsBackToPreviousKey(t *testing.T) {
	oldKey := mustKey(t, "prod", "v1")
	old, err := NewKeyring("prod", oldKey, "")
	if err != nil {
		t.Fatalf("old keyring: %v", err)
	}
	sealed, err := old.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	rotated, err := NewKeyring("prod", mustKey(t, "prod", "v2"), oldKey)
	if err != nil {
		t.Fatalf("rotated keyring: %v", err)
	}
	plain, err := rotated.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt with previous key: %v", err)
	}
	if plain != "secret" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
	if !rotated.NeedsRotation(sealed) {
		t.Fatal("expected value sealed with previous key to need rotation")
	}

	stranger, _ := NewKeyring("prod", mustKey(t, "prod", "v3"), "")
	if _, err := stranger.Decrypt(sealed); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestKeyringRejectsBadKeys(t *testing.T) {
	if _, err := NewKeyring("prod", mustKey(t, "dev", "v1"), ""); err == nil {
		t.Fatal("expected env mismatch error")
	}
	if _, err := NewKeyring("dev", "dev.v1.c2hvcnQ=", ""); err == nil {
		t.Fatal("expected short key error")
	}
	if _, err := NewKeyring("dev", "not-a-key", ""); err == nil {
		t.Fatal("expected format error")
	}

	empty, err := NewKeyring("dev", "", "")
	if err != nil {
		t.Fatalf("empty keyring: %v", err)
	}
	if _, err := empty.Encrypt("x"); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
