package review

import "time"

// Review is a customer testimonial. Only approved reviews are public.
type Review struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"userId,omitempty"`
	AuthorName string    `json:"authorName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateRequest struct {
	AuthorName string `json:"authorName" validate:"required,max=100"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string `json:"comment" validate:"required,max=2000"`
	CSRFToken  string `json:"csrfToken" validate:"required"`
}

// Summary aggregates the public reviews.
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}
