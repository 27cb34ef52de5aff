package mfa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"

	"zimship/mq"
	"zimship/secure"
)

// Issuer is shown next to the account in authenticator apps.
const Issuer = "ZimShip"

var (
	ErrNotConfigured = errors.New("mfa: encryption key not configured")
	ErrInvalidCode   = errors.New("mfa: invalid code")
	ErrNotEnabled    = errors.New("mfa: not enabled for this user")
	ErrNoAccount     = errors.New("mfa: account name required")
)

var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Service enrolls users in TOTP and checks their codes.
type Service struct {
	repo    Repository
	keyring *secure.Keyring
	events  EventPublisher
	now     func() time.Time
	log     slog.Logger
}

// NewService builds the MFA service. A nil keyring is allowed; operations
// that store or read secrets then fail with ErrNotConfigured.
func NewService(repo Repository, keyring *secure.Keyring) *Service {
	return &Service{
		repo:    repo,
		keyring: keyring,
		now:     time.Now,
		log:     slog.Disabled,
	}
}

func (s *Service) WithEvents(p EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithLogger(log slog.Logger) *Service {
	s.log = log
	return s
}

// Generate creates a new TOTP secret for account. Nothing is stored until
// Enable confirms a code.
func (s *Service) Generate(account string) (Enrollment, error) {
	if account == "" {
		return Enrollment{}, ErrNoAccount
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: account,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("mfa: generate secret: %w", err)
	}
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return Enrollment{}, fmt.Errorf("mfa: encode qr code: %w", err)
	}
	return Enrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Enable checks code against secret and, if it matches, stores the
// encrypted secret on the user's profile.
func (s *Service) Enable(ctx context.Context, userID string, req EnableRequest) error {
	if s.keyring == nil {
		return ErrNotConfigured
	}
	if !s.valid(req.Code, req.Secret) {
		return ErrInvalidCode
	}
	ciphertext, err := s.keyring.Encrypt(req.Secret)
	if errors.Is(err, secure.ErrNoKey) {
		return ErrNotConfigured
	}
	if err != nil {
		return fmt.Errorf("mfa: encrypt secret: %w", err)
	}
	if err := s.repo.Enable(ctx, userID, ciphertext); err != nil {
		return err
	}
	s.log.Infof("MFA enabled for user %s", userID)

	if s.events != nil {
		if err := s.events.PublishJSON(ctx, mq.RKMFAEnabled, mq.MFAEnabled{UserID: userID}); err != nil {
			s.log.Errorf("Publish %s: %v", mq.RKMFAEnabled, err)
		}
	}
	return nil
}

// Verify reports whether code matches the user's stored secret. Secrets
// sealed with the previous key are re-sealed with the current one.
func (s *Service) Verify(ctx context.Context, userID string, req VerifyRequest) (bool, error) {
	if s.keyring == nil {
		return false, ErrNotConfigured
	}
	stored, err := s.repo.GetSecret(ctx, userID)
	if err != nil {
		return false, err
	}
	if !stored.Enabled || stored.Ciphertext == "" {
		return false, ErrNotEnabled
	}
	secret, err := s.keyring.Decrypt(stored.Ciphertext)
	if errors.Is(err, secure.ErrNoKey) {
		return false, ErrNotConfigured
	}
	if err != nil {
		return false, fmt.Errorf("mfa: decrypt secret: %w", err)
	}

	if s.keyring.NeedsRotation(stored.Ciphertext) {
		if fresh, err := s.keyring.Encrypt(secret); err == nil {
			if err := s.repo.ReplaceSecret(ctx, userID, fresh); err != nil {
				s.log.Warnf("Re-seal MFA secret for %s: %v", userID, err)
			}
		}
	}

	return s.valid(req.Code, secret), nil
}

func (s *Service) valid(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), validateOpts)
	return err == nil && ok
}
