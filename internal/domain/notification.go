package domain

import "time"

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationWin        NotificationType = "win"
	NotificationEndingSoon NotificationType = "ending_soon"
)

// Notification is an append-only in-app message for one user.
type Notification struct {
	ID            string
	UserID        string
	Title         string
	Message       string
	Type          NotificationType
	CompetitionID string
	ImageURL      string
	Data          map[string]any
	Read          bool
	CreatedAt     time.Time
}

// EmailContent holds both renderings of an email body.
type EmailContent struct {
	HTML string
	Text string
}

// EmailLog is an append-only record of an email queued for delivery. Delivery
// itself is performed by another process, which flips Sent.
type EmailLog struct {
	ID        string
	To        string
	Subject   string
	Content   EmailContent
	Sent      bool
	Timestamp time.Time
	Error     string
}
