package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer KafkaNotifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes rendered emails as JSON to a topic. A mailer
// service consumes the topic and does the actual delivery.
type KafkaNotifier struct {
	r Renderer
	w messageWriter
}

// NewKafkaNotifier creates a writer for topic on brokers. Messages are
// keyed by recipient so one user's emails stay ordered.
func NewKafkaNotifier(r Renderer, brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaNotifier{r: r, w: w}
}

func (n *KafkaNotifier) SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error {
	return n.publish(ctx, n.r.PasswordReset(msg))
}

func (n *KafkaNotifier) SendEmailVerificationEmail(ctx context.Context, msg VerificationEmail) error {
	return n.publish(ctx, n.r.Verification(msg))
}

func (n *KafkaNotifier) publish(ctx context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.To),
		Value: body,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(m.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
