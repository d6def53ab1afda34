package domain

import "time"

// NotificationKind classifies a catalog change notification.
type NotificationKind string

const (
	NotificationNewItem  NotificationKind = "new_item"
	NotificationSoldItem NotificationKind = "sold_item"
)

// String returns the string representation of NotificationKind.
func (k NotificationKind) String() string {
	return string(k)
}

// NotificationEvent is an ephemeral UI event. It lives only in subscriber
// memory and self-destructs when ExpiresAt passes.
type NotificationEvent struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}
