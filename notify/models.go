package notify

import "time"

// Notification is one in-app message shown to a user.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	AnnouncementID *string   `json:"announcementId,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BroadcastRequest is the body of the announcement notification endpoint.
type BroadcastRequest struct {
	AnnouncementID string `json:"announcementId" validate:"required,uuid"`
}

// FanOutResult describes one broadcast.
type FanOutResult struct {
	AnnouncementID string
	Title          string
	Count          int
}
