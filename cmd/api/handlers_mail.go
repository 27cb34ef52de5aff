package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zimship/email"
	"zimship/notify"
)

// handleSendEmail sends one templated email. The contact form is open to
// guests; every other template needs a signed-in caller.
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req email.SendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if _, ok := userIDFromContext(r.Context()); !ok && req.Template != email.TemplateContact {
		writeFailure(w, http.StatusUnauthorized, "sign in to send this email")
		return
	}
	if s.mailService == nil {
		writeFailure(w, http.StatusInternalServerError, email.ErrNotConfigured.Error())
		return
	}

	id, err := s.mailService.Send(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
	case errors.Is(err, email.ErrUnknownTemplate), errors.Is(err, email.ErrNoRecipient):
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		writeFailure(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleAnnouncementNotification(w http.ResponseWriter, r *http.Request) {
	if s.notifyService == nil {
		writeFailure(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req notify.BroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	n, err := s.notifyService.Broadcast(r.Context(), req.AnnouncementID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": n})
	case errors.Is(err, notify.ErrAnnouncementNotFound):
		writeFailure(w, http.StatusNotFound, "announcement not found")
	default:
		s.logger().Errorf("Broadcast %s: %v", req.AnnouncementID, err)
		writeFailure(w, http.StatusInternalServerError, "failed to send notifications")
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifyService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	items, err := s.notifyService.ListForUser(r.Context(), userID, queryLimit(r, 50))
	if err != nil {
		s.logger().Errorf("List notifications: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if s.notifyService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	err := s.notifyService.MarkRead(r.Context(), userID, chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, notify.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	default:
		s.logger().Errorf("Mark notification read: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update notification")
	}
}
