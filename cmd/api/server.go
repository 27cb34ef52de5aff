package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zimship/address"
	"zimship/announcement"
	"zimship/auth"
	"zimship/email"
	"zimship/gallery"
	"zimship/mfa"
	"zimship/notify"
	"zimship/obs"
	"zimship/payment"
	"zimship/review"
	"zimship/shipment"
	"zimship/ticket"
	"zimship/validate"
)

type contextKey string

const (
	ctxKeyUserID contextKey = "userID"
	ctxKeyEmail  contextKey = "email"
	ctxKeyRole   contextKey = "role"
	ctxKeyToken  contextKey = "token"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (auth.LoginResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	VerifyToken(ctx context.Context, token string) (auth.Claims, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type shipmentService interface {
	Create(ctx context.Context, params shipment.CreateParams) (shipment.Shipment, error)
	Track(ctx context.Context, trackingNumber string) (shipment.Shipment, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]shipment.Shipment, error)
	Cancel(ctx context.Context, id, reason string) (shipment.Shipment, error)
	Advance(ctx context.Context, trackingNumber string, to shipment.Status) (shipment.Shipment, error)
}

type paymentService interface {
	CreateSession(ctx context.Context, req payment.Request) (payment.Result, error)
}

type mfaService interface {
	Generate(account string) (mfa.Enrollment, error)
	Enable(ctx context.Context, userID string, req mfa.EnableRequest) error
	Verify(ctx context.Context, userID string, req mfa.VerifyRequest) (bool, error)
}

type mailService interface {
	Send(ctx context.Context, req email.SendRequest) (string, error)
}

type notifyService interface {
	Broadcast(ctx context.Context, announcementID string) (int, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type addressService interface {
	List(ctx context.Context, userID string) ([]address.Address, error)
	Create(ctx context.Context, userID string, req address.CreateRequest) (address.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type reviewService interface {
	ListApproved(ctx context.Context, limit int) ([]review.Review, error)
	Submit(ctx context.Context, userID *string, req review.CreateRequest) (review.Review, error)
	Approve(ctx context.Context, id string) (review.Review, error)
}

type ticketService interface {
	List(ctx context.Context, userID string, admin bool) ([]ticket.Ticket, error)
	Open(ctx context.Context, userID, userEmail string, req ticket.CreateRequest) (ticket.Ticket, error)
	Resolve(ctx context.Context, userID, ticketID string, admin bool) (ticket.Ticket, error)
}

type galleryService interface {
	List(ctx context.Context, category string, limit int) ([]gallery.Image, error)
	Add(ctx context.Context, req gallery.CreateRequest) (gallery.Image, error)
}

type announcementService interface {
	ListActive(ctx context.Context, limit int) ([]announcement.Announcement, error)
	Publish(ctx context.Context, adminID string, req announcement.CreateRequest) (announcement.Announcement, error)
	Deactivate(ctx context.Context, id string) error
}

type csrfStore interface {
	Generate(ctx context.Context) (string, error)
	Validate(ctx context.Context, token string) error
}

// Server hosts every HTTP handler. A nil service means its configuration
// is missing; the routes that need it answer with an error when called.
type Server struct {
	log       slog.Logger
	metrics   *obs.Metrics
	validator *validate.Validator

	authService         authService
	shipmentService     shipmentService
	paymentService      paymentService
	mfaService          mfaService
	mailService         mailService
	notifyService       notifyService
	addressService      addressService
	reviewService       reviewService
	ticketService       ticketService
	galleryService      galleryService
	announcementService announcementService
	csrf                csrfStore
}

func (s *Server) logger() slog.Logger {
	if s.log == nil {
		return slog.Disabled
	}
	return s.log
}

var defaultValidator = validate.New()

func (s *Server) validate(v any) error {
	if s.validator == nil {
		return defaultValidator.Struct(v)
	}
	return s.validator.Struct(v)
}

// Router wires every route behind the CORS and metrics middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
		r.With(s.optionalAuth).Get("/auth/session", s.handleSession)
		r.With(s.authMiddleware).Get("/auth/admin", s.handleAdminCheck)

		r.Post("/create-payment-session", s.handleCreatePaymentSession)
		r.With(s.optionalAuth).Post("/create-shipment", s.handleCreateShipment)
		r.With(s.optionalAuth).Post("/checkout", s.handleCheckout)
		r.Get("/shipments/{trackingNumber}", s.handleTrackShipment)
		r.With(s.authMiddleware).Get("/shipments", s.handleListShipments)
		r.With(s.authMiddleware, s.requireAdmin).Patch("/shipments/{trackingNumber}/status", s.handleUpdateShipmentStatus)

		r.Post("/quote", s.handleQuote)
		r.Get("/cities", s.handleCities)

		r.With(s.authMiddleware).Post("/mfa/generate", s.handleGenerateMFA)
		r.With(s.authMiddleware).Post("/mfa/enable", s.handleEnableMFA)
		r.With(s.authMiddleware).Post("/mfa/verify", s.handleVerifyMFA)

		r.With(s.optionalAuth).Post("/send-email", s.handleSendEmail)
		r.With(s.authMiddleware, s.requireAdmin).Post("/send-announcement-notification", s.handleAnnouncementNotification)
		r.With(s.authMiddleware).Get("/notifications", s.handleListNotifications)
		r.With(s.authMiddleware).Post("/notifications/{id}/read", s.handleMarkNotificationRead)

		r.Post("/csrf", s.handleIssueCSRF)

		r.With(s.authMiddleware).Get("/addresses", s.handleListAddresses)
		r.With(s.authMiddleware).Post("/addresses", s.handleCreateAddress)
		r.With(s.authMiddleware).Delete("/addresses/{id}", s.handleDeleteAddress)

		r.Get("/reviews", s.handleListReviews)
		r.With(s.optionalAuth).Post("/reviews", s.handleSubmitReview)
		r.With(s.authMiddleware, s.requireAdmin).Post("/reviews/{id}/approve", s.handleApproveReview)

		r.With(s.authMiddleware).Get("/tickets", s.handleListTickets)
		r.With(s.authMiddleware).Post("/tickets", s.handleOpenTicket)
		r.With(s.authMiddleware).Patch("/tickets/{id}", s.handleResolveTicket)

		r.Get("/gallery", s.handleListGallery)
		r.With(s.authMiddleware, s.requireAdmin).Post("/gallery", s.handleAddGalleryImage)

		r.Get("/announcements", s.handleListAnnouncements)
		r.With(s.authMiddleware, s.requireAdmin).Post("/announcements", s.handlePublishAnnouncement)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/announcements/{id}", s.handleDeactivateAnnouncement)
	})

	return r
}

// corsMiddleware allows any origin and answers preflight requests with an
// empty 204.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type, x-csrf-token")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger().Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func withClaims(ctx context.Context, token string, claims auth.Claims) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, claims.UserID)
	ctx = context.WithValue(ctx, ctxKeyEmail, claims.Email)
	ctx = context.WithValue(ctx, ctxKeyRole, claims.Role)
	return context.WithValue(ctx, ctxKeyToken, token)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authService == nil {
			writeError(w, http.StatusServiceUnavailable, "auth is not configured")
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		claims, err := s.authService.VerifyToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), token, claims)))
	})
}

// optionalAuth attaches claims when a valid token is present and lets the
// request through either way.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token != "" && s.authService != nil {
			if claims, err := s.authService.VerifyToken(r.Context(), token); err == nil {
				r = r.WithContext(withClaims(r.Context(), token, claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin re-checks the role against the profile row rather than
// trusting the token. Lookup errors deny.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok || s.authService == nil {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		isAdmin, err := s.authService.IsAdmin(r.Context(), userID)
		if err != nil {
			s.logger().Warnf("Admin check for %s: %v", userID, err)
		}
		if err != nil || !isAdmin {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID).(string)
	return v, ok && v != ""
}

func emailFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyEmail).(string)
	return v
}

func roleFromContext(ctx context.Context) auth.Role {
	v, _ := ctx.Value(ctxKeyRole).(auth.Role)
	return v
}
