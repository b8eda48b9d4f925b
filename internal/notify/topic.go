package notify

import (
	"context"
	"time"

	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/messaging"
)

// EmailAttribute is the message attribute carrying the recipient address,
// kept on the message itself for auditing on the consumer side.
const EmailAttribute = "email"

// TopicDispatcher publishes notifications to the Kafka notification topic.
// It is selected over LogDispatcher when brokers are configured.
type TopicDispatcher struct {
	producer *messaging.Producer
}

func NewTopicDispatcher(producer *messaging.Producer) *TopicDispatcher {
	return &TopicDispatcher{producer: producer}
}

func (d *TopicDispatcher) Send(ctx context.Context, email, subject, body string) error {
	msg := domain.NotificationMessage{
		Email:   email,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	}
	return d.producer.Publish(ctx, email, msg,
		messaging.Attribute{Key: EmailAttribute, Value: email},
	)
}
