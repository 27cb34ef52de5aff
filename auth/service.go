package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidToken signals a malformed, expired or revoked token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrNotConfigured signals that JWT_SECRET is unset.
	ErrNotConfigured = errors.New("auth: JWT_SECRET is not configured")
)

// Service handles authentication business logic.
type Service struct {
	repo        Repository
	jwtSecret   []byte
	ttl         time.Duration
	revoker     Revoker
	idGenerator func() string
	now         func() time.Time
	log         slog.Logger
}

// LoginResult bundles the session and domain user returned after sign-in.
type LoginResult struct {
	Session Session
	User    User
}

// NewService creates a new authentication service. Tokens live for one hour
// unless WithTTL says otherwise.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:        repo,
		jwtSecret:   []byte(jwtSecret),
		ttl:         time.Hour,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
		log:         slog.Disabled,
	}
}

func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithRevoker enables server-side sign-out.
func (s *Service) WithRevoker(r Revoker) *Service {
	s.revoker = r
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
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

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	if len(s.jwtSecret) == 0 {
		return LoginResult{}, ErrNotConfigured
	}
	if len(req.Password) < 8 {
		return LoginResult{}, ErrWeakPassword
	}
	email := strings.TrimSpace(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || fullName == "" {
		return LoginResult{}, fmt.Errorf("auth: email and full name are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: hash password: %w", err)
	}

	var phone *string
	if p := strings.TrimSpace(req.Phone); p != "" {
		phone = &p
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        email,
		FullName:     fullName,
		Phone:        phone,
		PasswordHash: string(passwordHash),
		Role:         RoleCustomer,
	})
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Infof("Registered user %s", user.ID)

	session, err := s.issue(user, RoleCustomer)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: session, User: user}, nil
}

// Login authenticates a user and returns a new session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if len(s.jwtSecret) == 0 {
		return LoginResult{}, ErrNotConfigured
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Debugf("Failed login for %s", user.ID)
		return LoginResult{}, ErrInvalidCredentials
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	session, err := s.issue(user, profile.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Session: session, User: user}, nil
}

// Logout revokes the token so later VerifyToken calls reject it. Without a
// revoker it only validates the token.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.VerifyToken(ctx, tokenString)
	if err != nil {
		return err
	}
	if s.revoker == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt.Sub(s.now()))
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile returns the profile for userID.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// IsAdmin is the authoritative role check, read from the profile row on
// every call.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.Role == RoleAdmin, nil
}

// VerifyToken validates a JWT and returns its claims.
func (s *Service) VerifyToken(ctx context.Context, tokenString string) (Claims, error) {
	if len(s.jwtSecret) == 0 {
		return Claims{}, ErrNotConfigured
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	var c Claims
	if c.UserID, ok = mc["sub"].(string); !ok || c.UserID == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if c.TokenID, ok = mc["jti"].(string); !ok || c.TokenID == "" {
		return Claims{}, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}
	c.Email, _ = mc["email"].(string)
	roleStr, _ := mc["role"].(string)
	c.Role = Role(roleStr)
	if !isValidRole(c.Role) {
		return Claims{}, fmt.Errorf("%w: invalid role %q", ErrInvalidToken, roleStr)
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	c.ExpiresAt = exp.Time

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, c.TokenID)
		if err != nil {
			return Claims{}, err
		}
		if revoked {
			return Claims{}, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}
	return c, nil
}

func (s *Service) issue(user User, role Role) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	tokenID := s.idGenerator()

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(role),
		"jti":   tokenID,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return Session{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return Session{
		AccessToken: signed,
		TokenID:     tokenID,
		UserID:      user.ID,
		ExpiresAt:   time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

func isValidRole(role Role) bool {
	switch role {
	case RoleCustomer, RoleAdmin:
		return true
	default:
		return false
	}
}
