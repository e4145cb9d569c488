package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nsqio/go-nsq"
)

// NSQConfig holds the connection settings for NSQBackend.
type NSQConfig struct {
	NSQDAddress    string
	LookupdAddress string
	Topic          string
	Channel        string
	MaxInFlight    int

	// PublishOnly skips the consumer; Dequeue then blocks until the backend
	// is closed. API processes that never run workers use it.
	PublishOnly bool
}

// NSQBackend publishes payloads to an NSQ topic and consumes them from a
// channel on that topic.
//
// A consumed message is finished only once a Dequeue caller has taken it; if
// the backend closes first the message is requeued for another consumer.
type NSQBackend struct {
	producer *nsq.Producer
	consumer *nsq.Consumer
	topic    string
	messages chan Payload
	stop     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
	logger   *slog.Logger
}

// Ensure NSQBackend implements Backend
var _ Backend = (*NSQBackend)(nil)

// NewNSQBackend creates the producer and consumer and connects the consumer,
// through nsqlookupd when an address is configured and directly to nsqd otherwise.
func NewNSQBackend(cfg NSQConfig, logger *slog.Logger) (*NSQBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nsq_queue", "topic", cfg.Topic)

	nsqCfg := nsq.NewConfig()
	if cfg.MaxInFlight > 0 {
		nsqCfg.MaxInFlight = cfg.MaxInFlight
	}

	producer, err := nsq.NewProducer(cfg.NSQDAddress, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create producer: %w", ErrBackendUnavailable, err)
	}
	producer.SetLogger(&nsqLogger{log: logger}, nsq.LogLevelWarning)

	b := &NSQBackend{
		producer: producer,
		topic:    cfg.Topic,
		messages: make(chan Payload),
		stop:     make(chan struct{}),
		logger:   logger,
	}
	if cfg.PublishOnly {
		return b, nil
	}

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		producer.Stop()
		return nil, fmt.Errorf("%w: create consumer: %w", ErrBackendUnavailable, err)
	}
	consumer.SetLogger(&nsqLogger{log: logger}, nsq.LogLevelWarning)

	b.consumer = consumer
	consumer.AddHandler(nsq.HandlerFunc(b.handleMessage))

	if cfg.LookupdAddress != "" {
		err = consumer.ConnectToNSQLookupd(cfg.LookupdAddress)
	} else {
		err = consumer.ConnectToNSQD(cfg.NSQDAddress)
	}
	if err != nil {
		b.shutdown()
		return nil, fmt.Errorf("%w: connect consumer: %w", ErrBackendUnavailable, err)
	}

	return b, nil
}

// handleMessage hands the payload to a waiting Dequeue call.
func (b *NSQBackend) handleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var p Payload
	if err := json.Unmarshal(m.Body, &p); err != nil {
		b.logger.Error("dropping malformed payload", "error", err, "message_id", string(m.ID[:]))
		return nil
	}

	m.DisableAutoResponse()
	select {
	case b.messages <- p:
		m.Finish()
	case <-b.stop:
		m.Requeue(0)
	}
	return nil
}

// Enqueue publishes the payload to the topic.
func (b *NSQBackend) Enqueue(_ context.Context, p Payload) error {
	if b.closed.Load() {
		return ErrQueueClosed
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := b.producer.Publish(b.topic, body); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrBackendUnavailable, err)
	}
	b.logger.Debug("job enqueued", "job_id", p.JobID)
	return nil
}

// Dequeue waits for the consumer to deliver the next payload.
func (b *NSQBackend) Dequeue(ctx context.Context) (Payload, error) {
	select {
	case <-ctx.Done():
		return Payload{}, ctx.Err()
	case <-b.stop:
		return Payload{}, ErrQueueClosed
	case p := <-b.messages:
		return p, nil
	}
}

// Close stops the consumer, waiting for in-flight handlers, then the producer.
func (b *NSQBackend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.shutdown()
	return nil
}

func (b *NSQBackend) shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
	if b.consumer != nil {
		b.consumer.Stop()
		<-b.consumer.StopChan
	}
	b.producer.Stop()
}

// nsqLogger forwards go-nsq log lines to slog.
type nsqLogger struct {
	log *slog.Logger
}

func (l *nsqLogger) Output(_ int, s string) error {
	switch {
	case strings.HasPrefix(s, "ERR"):
		l.log.Error(s)
	case strings.HasPrefix(s, "WRN"):
		l.log.Warn(s)
	default:
		l.log.Debug(s)
	}
	return nil
}
