// Package kafkasink publishes store activity events to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-stores/pkg/activity"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by Hook.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds a writer for topic balanced by bytes across brokers.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

// Hook publishes each event as a JSON message keyed by its object id.
type Hook struct {
	Writer MessageWriter
}

type message struct {
	Verb           string         `json:"verb"`
	ActorID        string         `json:"actor_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
	ObjectType     string         `json:"object_type"`
	ObjectID       string         `json:"object_id"`
	Channel        string         `json:"channel,omitempty"`
	DefinitionCode string         `json:"definition_code,omitempty"`
	Recipients     []string       `json:"recipients,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Notify implements activity.ActivityHook.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Writer == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Deliverable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(message{
		Verb:           normalized.Verb,
		ActorID:        normalized.ActorID,
		UserID:         normalized.UserID,
		TenantID:       normalized.TenantID,
		ObjectType:     normalized.ObjectType,
		ObjectID:       normalized.ObjectID,
		Channel:        normalized.Channel,
		DefinitionCode: normalized.DefinitionCode,
		Recipients:     normalized.Recipients,
		Metadata:       normalized.Metadata,
		OccurredAt:     normalized.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("kafkasink: marshal %s event: %w", normalized.Verb, err)
	}
	if err := h.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(normalized.ObjectID),
		Value: payload,
		Time:  normalized.OccurredAt,
	}); err != nil {
		return fmt.Errorf("kafkasink: publish %s event: %w", normalized.Verb, err)
	}
	return nil
}
