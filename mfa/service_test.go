package mfa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"zimship/mq"
	"zimship/secure"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerateEnrollment(t *testing.T) {
	svc := NewService(newFakeRepository(), nil)

	e, err := svc.Generate("tendai@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if e.Secret == "" {
		t.Fatal("expected secret")
	}
	if !strings.HasPrefix(e.OTPAuthURL, "otpauth://totp/") || !strings.Contains(e.OTPAuthURL, "issuer=ZimShip") {
		t.Fatalf("unexpected otpauth url %q", e.OTPAuthURL)
	}
	if !strings.HasPrefix(e.QRCode, "data:image/png;base64,") {
		t.Fatalf("unexpected qr code prefix %q", e.QRCode[:30])
	}

	if _, err := svc.Generate(""); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestEnableStoresEncryptedSecret(t *testing.T) {
	repo := newFakeRepository()
	pub := &fakePublisher{}
	kr := newKeyring(t, "v1", "")
	svc := NewService(repo, kr).WithClock(func() time.Time { return fixedNow }).WithEvents(pub)

	secret := generateSecret(t, svc)
	code := codeAt(t, secret, fixedNow)

	if err := svc.Enable(context.Background(), "user-1", EnableRequest{Secret: secret, Code: code}); err != nil {
		t.Fatalf("enable: %v", err)
	}

	stored := repo.secrets["user-1"]
	if !stored.Enabled {
		t.Fatal("expected mfa enabled")
	}
	if stored.Ciphertext == secret || stored.Ciphertext == "" {
		t.Fatalf("secret stored in clear: %q", stored.Ciphertext)
	}
	plain, err := kr.Decrypt(stored.Ciphertext)
	if err != nil || plain != secret {
		t.Fatalf("stored ciphertext does not open: %q %v", plain, err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != mq.RKMFAEnabled {
		t.Fatalf("expected mfa.enabled event, got %v", pub.keys)
	}
}

func TestEnableRejectsWrongCode(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, newKeyring(t, "v1", "")).WithClock(func() time.Time { return fixedNow })
	secret := generateSecret(t, svc)

	// A code from an hour earlier is outside the skew window.
	stale := codeAt(t, secret, fixedNow.Add(-time.Hour))
	if stale == codeAt(t, secret, fixedNow) {
		t.Skip("stale code collides with current code")
	}
	err := svc.Enable(context.Background(), "user-1", EnableRequest{Secret: secret, Code: stale})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if _, ok := repo.secrets["user-1"]; ok {
		t.Fatal("secret stored despite invalid code")
	}
}

func TestEnableWithoutKey(t *testing.T) {
	svc := NewService(newFakeRepository(), nil)
	if err := svc.Enable(context.Background(), "user-1", EnableRequest{Secret: "x", Code: "123456"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	empty, err := secure.NewKeyring("test", "", "")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	svc = NewService(newFakeRepository(), empty).WithClock(func() time.Time { return fixedNow })
	secret := generateSecret(t, svc)
	err = svc.Enable(context.Background(), "user-1", EnableRequest{Secret: secret, Code: codeAt(t, secret, fixedNow)})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for empty keyring, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, newKeyring(t, "v1", "")).WithClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	if _, err := svc.Verify(ctx, "user-1", VerifyRequest{Code: "123456"}); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	repo.secrets["user-1"] = StoredSecret{}
	if _, err := svc.Verify(ctx, "user-1", VerifyRequest{Code: "123456"}); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}

	secret := generateSecret(t, svc)
	if err := svc.Enable(ctx, "user-1", EnableRequest{Secret: secret, Code: codeAt(t, secret, fixedNow)}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	ok, err := svc.Verify(ctx, "user-1", VerifyRequest{Code: codeAt(t, secret, fixedNow.Add(30*time.Second))})
	if err != nil || !ok {
		t.Fatalf("expected code within skew to verify, got %v %v", ok, err)
	}
	ok, err = svc.Verify(ctx, "user-1", VerifyRequest{Code: codeAt(t, secret, fixedNow.Add(10*time.Minute))})
	if err != nil || ok {
		t.Fatalf("expected stale code to fail, got %v %v", ok, err)
	}
}

func TestVerifyResealsWithCurrentKey(t *testing.T) {
	oldKey := mustKey(t, "v1")
	newKey := mustKey(t, "v2")
	oldRing, _ := secure.NewKeyring("test", oldKey, "")
	rotated, _ := secure.NewKeyring("test", newKey, oldKey)

	repo := newFakeRepository()
	svc := NewService(repo, oldRing).WithClock(func() time.Time { return fixedNow })
	secret := generateSecret(t, svc)
	if err := svc.Enable(context.Background(), "user-1", EnableRequest{Secret: secret, Code: codeAt(t, secret, fixedNow)}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	before := repo.secrets["user-1"].Ciphertext

	svc = NewService(repo, rotated).WithClock(func() time.Time { return fixedNow })
	ok, err := svc.Verify(context.Background(), "user-1", VerifyRequest{Code: codeAt(t, secret, fixedNow)})
	if err != nil || !ok {
		t.Fatalf("verify after rotation: %v %v", ok, err)
	}
	after := repo.secrets["user-1"].Ciphertext
	if after == before || rotated.NeedsRotation(after) {
		t.Fatal("expected secret re-sealed with current key")
	}
}

func generateSecret(t *testing.T, svc *Service) string {
	t.Helper()
	e, err := svc.Generate("user@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return e.Secret
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

func mustKey(t *testing.T, version string) string {
	t.Helper()
	k, err := secure.GenerateKey("test", version)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func newKeyring(t *testing.T, version, previous string) *secure.Keyring {
	t.Helper()
	kr, err := secure.NewKeyring("test", mustKey(t, version), previous)
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	return kr
}

type fakeRepository struct {
	secrets map[string]StoredSecret
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{secrets: make(map[string]StoredSecret)}
}

func (f *fakeRepository) Enable(_ context.Context, userID, ciphertext string) error {
	f.secrets[userID] = StoredSecret{Ciphertext: ciphertext, Enabled: true}
	return nil
}

func (f *fakeRepository) GetSecret(_ context.Context, userID string) (StoredSecret, error) {
	s, ok := f.secrets[userID]
	if !ok {
		return StoredSecret{}, ErrProfileNotFound
	}
	return s, nil
}

func (f *fakeRepository) ReplaceSecret(_ context.Context, userID, ciphertext string) error {
	s, ok := f.secrets[userID]
	if !ok {
		return ErrProfileNotFound
	}
	s.Ciphertext = ciphertext
	f.secrets[userID] = s
	return nil
}

type fakePublisher struct {
	keys []string
}

func (f *fakePublisher) PublishJSON(_ context.Context, key string, _ any) error {
	f.keys = append(f.keys, key)
	return nil
}
