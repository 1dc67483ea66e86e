package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"identity-core/internal/audit/domain"
)

type kafkaEntry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// messageWriter is the subset of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes activity entries as JSON, keyed by session id so one
// session's entries stay on one partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink returns a sink writing to topic, or nil when brokers or topic
// are empty. Call Close when shutting down.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Append writes the entry with a 5s timeout so a slow broker does not stall the session store.
func (s *KafkaSink) Append(ctx context.Context, a *domain.ActivityLog) error {
	if s == nil || s.writer == nil || a == nil {
		return nil
	}
	msg := kafkaEntry{
		ID:        a.ID,
		SessionID: a.SessionID,
		UserID:    a.UserID,
		Action:    string(a.Action),
		CreatedAt: a.CreatedAt,
	}
	if a.Details != "" {
		msg.Details = json.RawMessage(a.Details)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(a.SessionID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe on a nil sink.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
