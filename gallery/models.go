package gallery

import "time"

// Image is one entry on the public gallery page.
type Image struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption"`
	Category  string    `json:"category"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateRequest struct {
	URL       string `json:"url" validate:"required,url"`
	Caption   string `json:"caption" validate:"max=200"`
	Category  string `json:"category" validate:"omitempty,oneof=general drums collections deliveries warehouse"`
	SortOrder int    `json:"sortOrder" validate:"min=0"`
}
