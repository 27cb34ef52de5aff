package main

import (
	"errors"
	"net/http"
	"time"

	"zimship/auth"
)

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	Session *sessionResponse `json:"session"`
	User    *userResponse    `json:"user"`
}

func toAuthResponse(res auth.LoginResult) authResponse {
	return authResponse{
		Session: &sessionResponse{
			AccessToken: res.Session.AccessToken,
			ExpiresAt:   res.Session.ExpiresAt.UTC().Format(time.RFC3339),
		},
		User: &userResponse{ID: res.User.ID, Email: res.User.Email},
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		writeError(w, http.StatusServiceUnavailable, "auth is not configured")
		return
	}
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	res, err := s.authService.Register(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toAuthResponse(res))
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger().Errorf("Signup: %v", err)
		writeError(w, http.StatusInternalServerError, "signup failed")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		writeError(w, http.StatusServiceUnavailable, "auth is not configured")
		return
	}
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	res, err := s.authService.Login(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toAuthResponse(res))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		s.logger().Errorf("Login: %v", err)
		writeError(w, http.StatusInternalServerError, "login failed")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(ctxKeyToken).(string)
	if err := s.authService.Logout(r.Context(), token); err != nil {
		s.logger().Errorf("Logout: %v", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSession reports the caller's current session, or nulls when the
// request carries no valid token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, authResponse{})
		return
	}
	token, _ := r.Context().Value(ctxKeyToken).(string)
	claims, err := s.authService.VerifyToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, authResponse{})
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Session: &sessionResponse{AccessToken: token, ExpiresAt: claims.ExpiresAt.UTC().Format(time.RFC3339)},
		User:    &userResponse{ID: userID, Email: emailFromContext(r.Context())},
	})
}

// handleAdminCheck answers the client's role lookup. It never fails open:
// lookup errors are reported as errors, not as isAdmin=true.
func (s *Server) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	isAdmin, err := s.authService.IsAdmin(r.Context(), userID)
	if err != nil {
		s.logger().Errorf("Admin check for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "role lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": isAdmin})
}

func (s *Server) isAdmin(r *http.Request) bool {
	userID, ok := userIDFromContext(r.Context())
	if !ok || s.authService == nil {
		return false
	}
	if roleFromContext(r.Context()) != auth.RoleAdmin {
		return false
	}
	ok, err := s.authService.IsAdmin(r.Context(), userID)
	return err == nil && ok
}
