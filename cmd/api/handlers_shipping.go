package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"zimship/payment"
	"zimship/prefs"
	"zimship/quote"
	"zimship/shipment"
)

type shipmentResponse struct {
	ID             string         `json:"id"`
	TrackingNumber string         `json:"trackingNumber"`
	UserID         *string        `json:"userId,omitempty"`
	Status         string         `json:"status"`
	Origin         string         `json:"origin"`
	Destination    string         `json:"destination"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"createdAt"`
}

func toShipmentResponse(s shipment.Shipment) shipmentResponse {
	return shipmentResponse{
		ID:             s.ID,
		TrackingNumber: s.TrackingNumber,
		UserID:         s.UserID,
		Status:         string(s.Status),
		Origin:         s.Origin,
		Destination:    s.Destination,
		Metadata:       s.Metadata,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createShipmentRequest struct {
	ShipmentData map[string]any `json:"shipmentData"`
}

type checkoutRequest struct {
	ShipmentData  map[string]any `json:"shipmentData"`
	Amount        float64        `json:"amount" validate:"gt=0"`
	PaymentMethod string         `json:"paymentMethod"`
	Token         string         `json:"paymentToken,omitempty"`
}

// stringField returns the first non-empty string among keys, looking at the
// top level and then the sender and recipient sections of a booking form.
func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, section := range []string{"senderDetails", "recipientDetails"} {
		if nested, ok := data[section].(map[string]any); ok {
			if v := stringField(nested, keys...); v != "" {
				return v
			}
		}
	}
	return ""
}

func (s *Server) shipmentParams(r *http.Request, data map[string]any) shipment.CreateParams {
	params := shipment.CreateParams{
		Origin:       stringField(data, "pickupAddress", "origin", "address"),
		Destination:  stringField(data, "destination", "recipientCity", "city"),
		ContactEmail: stringField(data, "email", "senderEmail"),
		Data:         data,
	}
	if params.ContactEmail == "" {
		params.ContactEmail = emailFromContext(r.Context())
	}
	if userID, ok := userIDFromContext(r.Context()); ok {
		params.UserID = &userID
	}
	return params
}

func (s *Server) handleCreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var req payment.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if s.paymentService == nil {
		writeError(w, http.StatusInternalServerError, payment.ErrNotConfigured.Error())
		return
	}

	res, err := s.paymentService.CreateSession(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCreateShipment stores the booking form as submitted. Database
// failures answer 400 with {success:false}.
func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if s.shipmentService == nil {
		writeFailure(w, http.StatusBadRequest, "database is not configured")
		return
	}

	rec, err := s.shipmentService.Create(r.Context(), s.shipmentParams(r, req.ShipmentData))
	if err != nil {
		s.logger().Errorf("Create shipment: %v", err)
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"shipment":       toShipmentResponse(rec),
		"shipmentId":     rec.ID,
		"trackingNumber": rec.TrackingNumber,
	})
}

// handleCheckout books the shipment and opens a payment session in one
// call. When the payment session cannot be created the shipment is
// cancelled so no unpaid booking is left pending.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if s.shipmentService == nil || s.paymentService == nil {
		writeFailure(w, http.StatusServiceUnavailable, "checkout is not configured")
		return
	}

	ctx := r.Context()
	rec, err := s.shipmentService.Create(ctx, s.shipmentParams(r, req.ShipmentData))
	if err != nil {
		s.logger().Errorf("Checkout shipment: %v", err)
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	booking := make(map[string]any, len(req.ShipmentData)+2)
	for k, v := range req.ShipmentData {
		booking[k] = v
	}
	booking["shipmentId"] = rec.ID
	booking["trackingNumber"] = rec.TrackingNumber

	res, err := s.paymentService.CreateSession(ctx, payment.Request{
		Amount:        req.Amount,
		BookingData:   booking,
		PaymentMethod: req.PaymentMethod,
		Token:         req.Token,
	})
	if err != nil {
		if _, cerr := s.shipmentService.Cancel(ctx, rec.ID, "payment session failed"); cerr != nil {
			s.logger().Errorf("Cancel shipment %s after payment failure: %v", rec.TrackingNumber, cerr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":        false,
			"error":          err.Error(),
			"trackingNumber": rec.TrackingNumber,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"shipmentId":     rec.ID,
		"trackingNumber": rec.TrackingNumber,
		"url":            res.URL,
		"sessionId":      res.SessionID,
	})
}

func (s *Server) handleTrackShipment(w http.ResponseWriter, r *http.Request) {
	if s.shipmentService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	rec, err := s.shipmentService.Track(r.Context(), chi.URLParam(r, "trackingNumber"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toShipmentResponse(rec))
	case errors.Is(err, shipment.ErrInvalidTracking):
		writeError(w, http.StatusBadRequest, "tracking numbers look like ZIMSHIP-12345")
	case errors.Is(err, shipment.ErrNotFound):
		writeError(w, http.StatusNotFound, "shipment not found")
	default:
		s.logger().Errorf("Track shipment: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load shipment")
	}
}

type updateStatusRequest struct {
	Status shipment.Status `json:"status" validate:"required"`
}

// handleUpdateShipmentStatus lets staff move a shipment along its
// lifecycle, for example once the collection driver has picked it up.
func (s *Server) handleUpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req); err != nil {
		writeValidation(w, err)
		return
	}
	if s.shipmentService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}

	rec, err := s.shipmentService.Advance(r.Context(), chi.URLParam(r, "trackingNumber"), req.Status)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toShipmentResponse(rec))
	case errors.Is(err, shipment.ErrInvalidTracking):
		writeError(w, http.StatusBadRequest, "tracking numbers look like ZIMSHIP-12345")
	case errors.Is(err, shipment.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
	case errors.Is(err, shipment.ErrNotFound):
		writeError(w, http.StatusNotFound, "shipment not found")
	case errors.Is(err, shipment.ErrBadStatus):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger().Errorf("Update shipment status: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update shipment")
	}
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	if s.shipmentService == nil {
		writeError(w, http.StatusServiceUnavailable, "database is not configured")
		return
	}
	userID, _ := userIDFromContext(r.Context())
	recs, err := s.shipmentService.ListForUser(r.Context(), userID, queryLimit(r, 50))
	if err != nil {
		s.logger().Errorf("List shipments: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list shipments")
		return
	}
	items := make([]shipmentResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toShipmentResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type quoteRequest struct {
	quote.Request
	Currency string `json:"currency"`
}

type quoteResponse struct {
	Quote     quote.Breakdown `json:"quote"`
	Currency  prefs.Currency  `json:"currency"`
	Subtotal  string          `json:"subtotal"`
	Surcharge string          `json:"surcharge"`
	Total     string          `json:"total"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate(req.Request); err != nil {
		writeValidation(w, err)
		return
	}

	code := req.Currency
	if code == "" {
		code = prefs.Currencies[0].Code
	}
	cur, ok := prefs.LookupCurrency(code)
	if !ok {
		writeError(w, http.StatusBadRequest, prefs.ErrUnknownCurrency.Error())
		return
	}

	b, err := quote.Quote(req.Request)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Quote:     b,
		Currency:  cur,
		Subtotal:  cur.Format(b.SubtotalGBP),
		Surcharge: cur.Format(b.SurchargeGBP),
		Total:     cur.Format(b.TotalGBP),
	})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"items": quote.SearchCities(r.URL.Query().Get("q"))}
	if pc := r.URL.Query().Get("postcode"); pc != "" {
		route, ok := quote.CollectionRoute(pc)
		out["collects"] = ok
		if ok {
			out["route"] = route
		}
	}
	writeJSON(w, http.StatusOK, out)
}
