package address

import "time"

// Address is a saved collection or delivery address.
type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Label     string    `json:"label"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`
	City      string    `json:"city"`
	Postcode  string    `json:"postcode"`
	Country   string    `json:"country"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRequest is the body of POST /api/addresses.
type CreateRequest struct {
	Label     string `json:"label" validate:"max=50"`
	Line1     string `json:"line1" validate:"required,max=200"`
	Line2     string `json:"line2" validate:"max=200"`
	City      string `json:"city" validate:"required,max=100"`
	Postcode  string `json:"postcode" validate:"max=10"`
	Country   string `json:"country" validate:"required,oneof='United Kingdom' Zimbabwe"`
	IsDefault bool   `json:"isDefault"`
}
