package payment

// Request is the create-payment-session body.
type Request struct {
	Amount        float64        `json:"amount" validate:"gt=0"`
	BookingData   map[string]any `json:"bookingData"`
	PaymentMethod string         `json:"paymentMethod"`
	// Token is a provider-side card or source token, required by Omise.
	Token string `json:"paymentToken,omitempty"`
}

// Result is where the customer is sent to pay.
type Result struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// SessionInput is the provider-neutral description of one checkout.
type SessionInput struct {
	AmountPence    int64
	Currency       string
	Description    string
	CustomerEmail  string
	ShipmentID     string
	TrackingNumber string
	Method         string
	Token          string
	SuccessURL     string
	CancelURL      string
}
