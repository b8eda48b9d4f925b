package domain

import "time"

// NotificationMessage is the payload published to the notification topic.
// The recipient email also travels as a message attribute for auditing.
type NotificationMessage struct {
	Email   string    `json:"email"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}
