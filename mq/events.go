package mq

import (
	"encoding/json"
	"fmt"
)

// Routing keys published on the events exchange.
const (
	RKShipmentCreated       = "shipment.created"
	RKShipmentCancelled     = "shipment.cancelled"
	RKShipmentStatusChanged = "shipment.status_changed"
	RKPaymentSessionCreated = "payment.session_created"
	RKAnnouncementPublished = "announcement.published"
	RKMFAEnabled            = "mfa.enabled"
)

type ShipmentCreated struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	UserID         string `json:"user_id,omitempty"`
	Email          string `json:"email,omitempty"`
	Destination    string `json:"destination,omitempty"`
}

type ShipmentCancelled struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Reason         string `json:"reason,omitempty"`
}

type ShipmentStatusChanged struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
	Email          string `json:"email,omitempty"`
}

type PaymentSessionCreated struct {
	SessionID   string `json:"session_id"`
	Provider    string `json:"provider"`
	AmountPence int64  `json:"amount_pence"`
}

type AnnouncementPublished struct {
	AnnouncementID string `json:"announcement_id"`
	Title          string `json:"title"`
	Recipients     int    `json:"recipients"`
}

type MFAEnabled struct {
	UserID string `json:"user_id"`
}

// Decode unmarshals an event body into T.
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("mq: decode payload: %w", err)
	}
	return t, nil
}
