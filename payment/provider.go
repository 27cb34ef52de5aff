package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var ErrMissingToken = errors.New("payment: omise charges need a card or source token")

// Provider creates a hosted checkout for one payment.
type Provider interface {
	Name() string
	CreateSession(ctx context.Context, in SessionInput) (Result, error)
}

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	sc *client.API
}

// NewStripeProvider builds a provider for secretKey. backends may be nil to
// use Stripe's public API.
func NewStripeProvider(secretKey string, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{sc: client.New(secretKey, backends)}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateSession(ctx context.Context, in SessionInput) (Result, error) {
	methods := []string{"card"}
	if in.Method != "" && in.Method != "card" {
		methods = append(methods, in.Method)
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice(methods),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(in.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
				UnitAmount: stripe.Int64(in.AmountPence),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.Context = ctx
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if in.ShipmentID != "" {
		params.AddMetadata("shipment_id", in.ShipmentID)
	}
	if in.TrackingNumber != "" {
		params.AddMetadata("tracking_number", in.TrackingNumber)
	}

	s, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return Result{}, fmt.Errorf("payment: stripe checkout: %w", err)
	}
	return Result{URL: s.URL, SessionID: s.ID}, nil
}

// OmiseProvider creates Omise charges that redirect the customer to the
// authorize URI.
type OmiseProvider struct {
	omc *omise.Client
}

func NewOmiseProvider(publicKey, secretKey string) (*OmiseProvider, error) {
	omc, err := omise.NewClient(publicKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("payment: omise client: %w", err)
	}
	omc.SetDebug(false)
	return &OmiseProvider{omc: omc}, nil
}

func (p *OmiseProvider) Name() string { return "omise" }

func (p *OmiseProvider) CreateSession(_ context.Context, in SessionInput) (Result, error) {
	if in.Token == "" {
		return Result{}, ErrMissingToken
	}

	req := &operations.CreateCharge{
		Amount:      in.AmountPence,
		Currency:    in.Currency,
		Description: in.Description,
		ReturnURI:   in.SuccessURL,
		Metadata: map[string]any{
			"shipment_id":     in.ShipmentID,
			"tracking_number": in.TrackingNumber,
		},
	}
	if in.Method == "" || in.Method == "card" {
		req.Card = in.Token
	} else {
		req.Source = in.Token
	}

	ch := &omise.Charge{}
	if err := p.omc.Do(ch, req); err != nil {
		return Result{}, fmt.Errorf("payment: omise charge: %w", err)
	}

	url := ch.AuthorizeURI
	if url == "" {
		url = in.SuccessURL
	}
	return Result{URL: url, SessionID: ch.ID}, nil
}
