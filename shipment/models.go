package shipment

import "time"

// Status represents the lifecycle of a shipment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCollected Status = "collected"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Shipment mirrors the shipments table. Metadata holds the booking form as
// submitted.
type Shipment struct {
	ID             string
	TrackingNumber string
	UserID         *string
	Status         Status
	Origin         string
	Destination    string
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateParams is the input for a new shipment.
type CreateParams struct {
	UserID       *string
	Origin       string
	Destination  string
	ContactEmail string
	Data         map[string]any
}
