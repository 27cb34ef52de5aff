package main

import (
	"errors"
	"net/http"

	"zimship/mfa"
)

func (s *Server) handleGenerateMFA(w http.ResponseWriter, r *http.Request) {
	if s.mfaService == nil {
		writeError(w, http.StatusServiceUnavailable, "mfa is not configured")
		return
	}
	account := emailFromContext(r.Context())
	if account == "" {
		account, _ = userIDFromContext(r.Context())
	}
	enrollment, err := s.mfaService.Generate(account)
	if err != nil {
		s.logger().Errorf("Generate MFA secret: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	writeJSON(w, http.StatusOK, enrollment)
}

func (s *Server) handleEnableMFA(w http.ResponseWriter, r *http.Request) {
	if s.mfaService == nil {
		writeError(w, http.StatusServiceUnavailable, "mfa is not configured")
		return
	}
	var req mfa.EnableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	userID, _ := userIDFromContext(r.Context())
	err := s.mfaService.Enable(r.Context(), userID, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, mfa.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid verification code")
	case errors.Is(err, mfa.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, mfa.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	default:
		s.logger().Errorf("Enable MFA for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to enable mfa")
	}
}

func (s *Server) handleVerifyMFA(w http.ResponseWriter, r *http.Request) {
	if s.mfaService == nil {
		writeError(w, http.StatusServiceUnavailable, "mfa is not configured")
		return
	}
	var req mfa.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	userID, _ := userIDFromContext(r.Context())
	ok, err := s.mfaService.Verify(r.Context(), userID, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
	case errors.Is(err, mfa.ErrNotEnabled), errors.Is(err, mfa.ErrProfileNotFound):
		writeError(w, http.StatusBadRequest, "mfa is not enabled")
	case errors.Is(err, mfa.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger().Errorf("Verify MFA for %s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "failed to verify code")
	}
}
