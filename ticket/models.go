package ticket

import "time"

// Status represents the lifecycle of a support ticket.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Ticket mirrors the tickets table.
type Ticket struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type CreateRequest struct {
	Subject   string `json:"subject" validate:"required,max=200"`
	Message   string `json:"message" validate:"required,max=5000"`
	CSRFToken string `json:"csrfToken" validate:"required"`
}
