// Package worker resolves utterances consumed from Kafka and publishes the
// results.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/entigo/internal/application/resolution"
	"github.com/turtacn/entigo/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/common"
	"github.com/turtacn/entigo/pkg/types/entity"
)

// Message statuses recorded in mq_messages_total.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusFailed  = "failed"
)

// Publisher publishes produced messages.
type Publisher interface {
	Publish(ctx context.Context, msg *kafka.ProducerMessage) error
}

// Subscriber registers topic handlers.
type Subscriber interface {
	Subscribe(topic string, handler kafka.MessageHandler)
}

// Config names the topics the worker reads and writes.
type Config struct {
	InputTopic  string
	OutputTopic string
}

// Option customises New.
type Option func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(l logging.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics records message metrics into m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// Worker turns UtteranceMessages into ResolvedMessages.
type Worker struct {
	svc     resolution.Service
	pub     Publisher
	cfg     Config
	metrics *prometheus.AppMetrics
	logger  logging.Logger
	now     func() time.Time
}

// New creates a Worker.  Empty topics default to the standard ones.
func New(svc resolution.Service, pub Publisher, cfg Config, opts ...Option) *Worker {
	if cfg.InputTopic == "" {
		cfg.InputTopic = kafka.TopicUtterances
	}
	if cfg.OutputTopic == "" {
		cfg.OutputTopic = kafka.TopicResolved
	}
	w := &Worker{
		svc:    svc,
		pub:    pub,
		cfg:    cfg,
		logger: logging.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register subscribes the worker to its input topic.
func (w *Worker) Register(sub Subscriber) {
	sub.Subscribe(w.cfg.InputTopic, w.Handle)
}

// Handle processes one message.  Messages that can never succeed (bad
// payload, unknown entity) are logged and acknowledged by returning nil;
// a failed publish is returned so the consumer retries it.
func (w *Worker) Handle(ctx context.Context, msg *kafka.Message) error {
	start := w.now()

	requestID := msg.Headers[kafka.HeaderRequestID]
	if requestID == "" {
		requestID = string(common.NewRequestID())
	}
	ctx = logging.ContextWithRequestID(ctx, requestID)
	log := w.logger.WithContext(ctx).With(
		logging.String("topic", msg.Topic),
		logging.Int("partition", msg.Partition),
		logging.Int64("offset", msg.Offset))

	utt, err := kafka.DecodeUtterance(msg.Value)
	if err != nil {
		log.WithError(err).Warn("discarding undecodable utterance")
		w.record(msg.Topic, StatusInvalid, start)
		return nil
	}

	resolved, err := w.resolve(ctx, utt)
	if err != nil {
		if errors.IsServerError(errors.GetCode(err)) {
			w.record(msg.Topic, StatusFailed, start)
			return err
		}
		log.WithError(err).Warn("discarding unresolvable utterance", logging.String("id", utt.ID))
		w.record(msg.Topic, StatusInvalid, start)
		return nil
	}
	resolved.RequestID = requestID

	out, err := kafka.NewResolvedProducerMessage(w.cfg.OutputTopic, resolved)
	if err != nil {
		log.WithError(err).Error("failed to encode resolved message", logging.String("id", utt.ID))
		w.record(msg.Topic, StatusFailed, start)
		return nil
	}
	if err := w.pub.Publish(ctx, out); err != nil {
		w.record(msg.Topic, StatusFailed, start)
		return err
	}

	log.Debug("utterance resolved",
		logging.String("id", utt.ID),
		logging.Int("entities", len(resolved.Result.Entities)))
	w.record(msg.Topic, StatusOK, start)
	return nil
}

func (w *Worker) resolve(ctx context.Context, utt *kafka.UtteranceMessage) (*kafka.ResolvedMessage, error) {
	if utt.SingleEntity == "" {
		out, err := w.svc.Resolve(ctx, &resolution.ResolveInput{
			Text:             utt.Text,
			ExpectedEntities: utt.ExpectedEntities,
		})
		if err != nil {
			return nil, err
		}
		return &kafka.ResolvedMessage{ID: utt.ID, Result: out.Result, ResolvedAt: w.now().UTC()}, nil
	}

	ents, err := w.svc.Entities(ctx, &resolution.EntitiesInput{
		Text:             utt.Text,
		ExpectedEntities: utt.ExpectedEntities,
		Entity:           utt.SingleEntity,
	})
	if err != nil {
		return nil, err
	}
	if ents == nil {
		ents = []entity.Entity{}
	}
	return &kafka.ResolvedMessage{
		ID:         utt.ID,
		Result:     entity.Result{Text: utt.Text, Entities: ents, Intents: []entity.Intent{}},
		ResolvedAt: w.now().UTC(),
	}, nil
}

func (w *Worker) record(topic, status string, start time.Time) {
	prometheus.RecordMessage(w.metrics, topic, status, w.now().Sub(start))
}

//Personal.AI order the ending
