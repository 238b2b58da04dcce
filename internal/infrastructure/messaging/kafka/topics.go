package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// Topic defaults.
const (
	TopicUtterances        = "entigo.utterances"
	TopicResolved          = "entigo.resolved"
	TopicDeadLetterDefault = "entigo.dead_letter"
)

// Header keys set on published messages.
const (
	HeaderRequestID     = "request_id"
	HeaderContentType   = "content_type"
	HeaderOriginalTopic = "original_topic"
	HeaderErrorMessage  = "error_message"
)

const contentTypeJSON = "application/json"

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message.  A returned error triggers
// the consumer's retry policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// -----------------------------------------------------------------------------
// Payloads
// -----------------------------------------------------------------------------

// UtteranceMessage asks the worker to resolve one utterance.
type UtteranceMessage struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	ExpectedEntities []string `json:"expected_entities,omitempty"`
	SingleEntity     string   `json:"single_entity,omitempty"`
}

// ResolvedMessage carries the resolution result for UtteranceMessage ID.
type ResolvedMessage struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	Result     entity.Result `json:"result"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// DecodeUtterance parses and validates an utterance payload.  A missing ID
// is generated.
func DecodeUtterance(data []byte) (*UtteranceMessage, error) {
	var msg UtteranceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode utterance message")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, errors.Validation("utterance text must not be empty").WithDetail("id=" + msg.ID)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	return &msg, nil
}

// NewResolvedProducerMessage encodes m for topic, keyed by the utterance ID.
func NewResolvedProducerMessage(topic string, m *ResolvedMessage) (*ProducerMessage, error) {
	if m.ResolvedAt.IsZero() {
		m.ResolvedAt = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode resolved message")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(m.ID),
		Value: data,
		Headers: map[string]string{
			HeaderRequestID:   m.RequestID,
			HeaderContentType: contentTypeJSON,
		},
		Timestamp: m.ResolvedAt,
	}, nil
}

//Personal.AI order the ending
