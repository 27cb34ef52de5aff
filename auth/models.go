package auth

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the identity record behind a session. It mirrors the users table
// and carries no JSON annotations so presentation layers shape it themselves.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the per-user row carrying role and MFA state.
type Profile struct {
	ID         string
	Email      string
	FullName   string
	Phone      *string
	Role       Role
	MFAEnabled bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Session is an issued access token and its expiry.
type Session struct {
	AccessToken string
	TokenID     string
	UserID      string
	ExpiresAt   time.Time
}

// Claims is what a verified access token asserts.
type Claims struct {
	UserID    string
	Email     string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"fullName" validate:"required,max=200"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
