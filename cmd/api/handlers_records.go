package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zimship/address"
	"zimship/announcement"
	"zimship/csrf"
	"zimship/gallery"
	"zimship/review"
	"zimship/ticket"
)

func (s *Server) handleIssueCSRF(w http.ResponseWriter, r *http.Request) {
	if s.csrf == nil {
		writeError(w, http.StatusServiceUnavailable, "csrf store is not configured")
		return
	}
	token, err := s.csrf.Generate(r.Context())
	if err != nil {
		s.logger().Errorf("Issue csrf token: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// checkCSRF consumes the form's token, taken from the body or the
// X-CSRF-Token header. It writes the error response itself.
func (s *Server) checkCSRF(w http.ResponseWriter, r *http.Request, bodyToken string) bool {
	if s.csrf == nil {
		writeError(w, http.StatusServiceUnavailable, "csrf store is not configured")
		return false
	}
	token := bodyToken
	if token == "" {
		token = r.Header.Get("X-CSRF-Token")
	}
	if err := s.csrf.Validate(r.Context(), token); err != nil {
		if !errors.Is(err, csrf.ErrInvalidToken) {
			s.logger().Errorf("Validate csrf token: %v", err)
		}
		writeError(w, http.StatusForbidden, "invalid or expired form token")
		return false
	}
	return true
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	if s.addressService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	items, err := s.addressService.List(r.Context(), userID)
	if err != nil {
		s.logger().Errorf("List addresses: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list addresses")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	if s.addressService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req address.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}

	userID, _ := userIDFromContext(r.Context())
	a, err := s.addressService.Create(r.Context(), userID, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, a)
	case errors.Is(err, address.ErrInvalidPostcode):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"postcode": "must be a valid UK postcode"},
		})
	default:
		s.logger().Errorf("Create address: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save address")
	}
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	if s.addressService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	err := s.addressService.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, address.ErrNotFound):
		writeError(w, http.StatusNotFound, "address not found")
	default:
		s.logger().Errorf("Delete address: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete address")
	}
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	if s.reviewService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	items, err := s.reviewService.ListApproved(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.logger().Errorf("List reviews: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "summary": review.Summarize(items)})
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	if s.reviewService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req review.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CSRFToken == "" {
		req.CSRFToken = r.Header.Get("X-CSRF-Token")
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if !s.checkCSRF(w, r, req.CSRFToken) {
		return
	}

	var userID *string
	if id, ok := userIDFromContext(r.Context()); ok {
		userID = &id
	}
	rev, err := s.reviewService.Submit(r.Context(), userID, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, rev)
	case errors.Is(err, review.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger().Errorf("Submit review: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save review")
	}
}

func (s *Server) handleApproveReview(w http.ResponseWriter, r *http.Request) {
	if s.reviewService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	rev, err := s.reviewService.Approve(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rev)
	case errors.Is(err, review.ErrNotFound):
		writeError(w, http.StatusNotFound, "review not found")
	default:
		s.logger().Errorf("Approve review: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to approve review")
	}
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	if s.ticketService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	items, err := s.ticketService.List(r.Context(), userID, s.isAdmin(r))
	if err != nil {
		s.logger().Errorf("List tickets: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleOpenTicket(w http.ResponseWriter, r *http.Request) {
	if s.ticketService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req ticket.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CSRFToken == "" {
		req.CSRFToken = r.Header.Get("X-CSRF-Token")
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if !s.checkCSRF(w, r, req.CSRFToken) {
		return
	}

	userID, _ := userIDFromContext(r.Context())
	t, err := s.ticketService.Open(r.Context(), userID, emailFromContext(r.Context()), req)
	if err != nil {
		s.logger().Errorf("Open ticket: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to open ticket")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type resolveTicketRequest struct {
	Status ticket.Status `json:"status"`
}

func (s *Server) handleResolveTicket(w http.ResponseWriter, r *http.Request) {
	if s.ticketService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req resolveTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status != ticket.StatusResolved {
		writeError(w, http.StatusBadRequest, "status must be resolved")
		return
	}

	userID, _ := userIDFromContext(r.Context())
	t, err := s.ticketService.Resolve(r.Context(), userID, chi.URLParam(r, "id"), s.isAdmin(r))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, t)
	case errors.Is(err, ticket.ErrBadStatus):
		writeError(w, http.StatusBadRequest, "ticket already resolved")
	case errors.Is(err, ticket.ErrNotFound), errors.Is(err, ticket.ErrForbidden):
		writeError(w, http.StatusNotFound, "ticket not found")
	default:
		s.logger().Errorf("Resolve ticket: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve ticket")
	}
}

func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	if s.galleryService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	items, err := s.galleryService.List(r.Context(), r.URL.Query().Get("category"), queryLimit(r, 100))
	if err != nil {
		s.logger().Errorf("List gallery: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list gallery")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleAddGalleryImage(w http.ResponseWriter, r *http.Request) {
	if s.galleryService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req gallery.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	img, err := s.galleryService.Add(r.Context(), req)
	if err != nil {
		s.logger().Errorf("Add gallery image: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to add image")
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	if s.announcementService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	items, err := s.announcementService.ListActive(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.logger().Errorf("List announcements: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list announcements")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handlePublishAnnouncement(w http.ResponseWriter, r *http.Request) {
	if s.announcementService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	var req announcement.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	adminID, _ := userIDFromContext(r.Context())
	a, err := s.announcementService.Publish(r.Context(), adminID, req)
	if err != nil {
		s.logger().Errorf("Publish announcement: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to publish announcement")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDeactivateAnnouncement(w http.ResponseWriter, r *http.Request) {
	if s.announcementService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	err := s.announcementService.Deactivate(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, announcement.ErrNotFound):
		writeError(w, http.StatusNotFound, "announcement not found")
	default:
		s.logger().Errorf("Deactivate announcement: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate announcement")
	}
}
