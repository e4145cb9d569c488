package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrHubClosed is returned by hub operations once the hub has stopped.
var ErrHubClosed = errors.New("notification hub is closed")

// Subscriber is one live observer connection.
type Subscriber interface {
	// Send writes the event to the observer. ctx carries the write deadline.
	Send(ctx context.Context, event Event) error

	// Close releases the underlying transport.
	Close() error
}

// SubscriberID identifies a connected subscriber within a hub.
type SubscriberID uint64

// HubConfig tunes the hub.
type HubConfig struct {
	// WriteTimeout bounds each send to a single subscriber.
	WriteTimeout time.Duration

	// CommandBuffer is the capacity of the hub's request channel.
	CommandBuffer int

	// OutboxSize is the number of events queued per subscriber. A subscriber
	// whose outbox is full when an event arrives is evicted.
	OutboxSize int
}

// DefaultHubConfig returns a HubConfig with reasonable defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:  5 * time.Second,
		CommandBuffer: 64,
		OutboxSize:    32,
	}
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdDisconnect
	cmdBroadcast
	cmdReply
	cmdCount
	cmdEvict
)

type command struct {
	kind   commandKind
	id     SubscriberID
	sub    Subscriber
	event  Event
	reason error
	reply  chan result
}

type result struct {
	id    SubscriberID
	count int
	err   error
}

// member is a connected subscriber and its pending events. Its writer
// goroutine is the only caller of sub.Send.
type member struct {
	sub    Subscriber
	outbox chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans events out to connected subscribers.
//
// Membership is owned by the goroutine started by Run. Each subscriber has a
// bounded outbox drained by its own writer goroutine, so a broadcast never
// waits on the network. A subscriber is evicted when its outbox is full or a
// send fails.
type Hub struct {
	cmds         chan command
	done         chan struct{}
	writeTimeout time.Duration
	outboxSize   int
	logger       *slog.Logger
	writers      sync.WaitGroup

	// owned by the Run goroutine
	members map[SubscriberID]*member
	nextID  SubscriberID
}

// NewHub creates a hub. Call Run to start processing requests.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	defaults := DefaultHubConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = defaults.CommandBuffer
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = defaults.OutboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cmds:         make(chan command, cfg.CommandBuffer),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		outboxSize:   cfg.OutboxSize,
		logger:       logger.With("component", "notification_hub"),
		members:      make(map[SubscriberID]*member),
	}
}

// Ensure Hub implements EventEmitter
var _ EventEmitter = (*Hub)(nil)

// Run processes hub requests until ctx is cancelled. On return every
// remaining subscriber is closed and further requests fail with ErrHubClosed.
// Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("notification hub started")
	defer func() {
		for id := range h.members {
			h.remove(id)
		}
		h.writers.Wait()
		close(h.done)
		h.logger.Info("notification hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.cmds:
			res := h.handle(cmd)
			if cmd.reply != nil {
				cmd.reply <- res
			}
		}
	}
}

func (h *Hub) handle(cmd command) result {
	switch cmd.kind {
	case cmdConnect:
		h.nextID++
		h.add(h.nextID, cmd.sub)
		h.logger.Debug("subscriber connected", "subscriber_id", h.nextID, "subscribers", len(h.members))
		return result{id: h.nextID}

	case cmdDisconnect:
		if h.remove(cmd.id) {
			h.logger.Debug("subscriber disconnected", "subscriber_id", cmd.id, "subscribers", len(h.members))
		}
		return result{}

	case cmdBroadcast:
		queued := 0
		for id := range h.members {
			if h.enqueue(id, cmd.event) {
				queued++
			}
		}
		return result{count: queued}

	case cmdReply:
		if _, ok := h.members[cmd.id]; ok && h.enqueue(cmd.id, cmd.event) {
			return result{count: 1}
		}
		return result{}

	case cmdCount:
		return result{count: len(h.members)}

	case cmdEvict:
		if h.remove(cmd.id) {
			h.logger.Warn("evicting subscriber after failed send",
				"subscriber_id", cmd.id,
				"error", cmd.reason)
		}
		return result{}
	}
	return result{}
}

func (h *Hub) add(id SubscriberID, sub Subscriber) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &member{
		sub:    sub,
		outbox: make(chan Event, h.outboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	h.members[id] = m

	h.writers.Add(1)
	go h.write(id, m)
}

// enqueue hands event to the subscriber's writer without blocking. A full
// outbox evicts the subscriber.
func (h *Hub) enqueue(id SubscriberID, event Event) bool {
	m := h.members[id]
	select {
	case m.outbox <- event:
		return true
	default:
		h.logger.Warn("evicting subscriber with full outbox",
			"subscriber_id", id,
			"event", event.Type,
			"queued", len(m.outbox))
		h.remove(id)
		return false
	}
}

// remove drops the subscriber, stops its writer and closes its transport.
func (h *Hub) remove(id SubscriberID) bool {
	m, ok := h.members[id]
	if !ok {
		return false
	}
	delete(h.members, id)
	m.cancel()
	if err := m.sub.Close(); err != nil {
		h.logger.Debug("error closing subscriber", "subscriber_id", id, "error", err)
	}
	return true
}

// write drains one subscriber's outbox until the subscriber is removed. The
// first failed send asks the hub to evict it.
func (h *Hub) write(id SubscriberID, m *member) {
	defer h.writers.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event := <-m.outbox:
			ctx, cancel := context.WithTimeout(m.ctx, h.writeTimeout)
			err := m.sub.Send(ctx, event)
			cancel()
			if err == nil {
				continue
			}

			select {
			case h.cmds <- command{kind: cmdEvict, id: id, reason: err}:
			case <-m.ctx.Done():
			}
			return
		}
	}
}

func (h *Hub) submit(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)

	select {
	case h.cmds <- cmd:
	case <-h.done:
		return result{}, ErrHubClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, nil
	case <-h.done:
		// The request may have been handled just before shutdown.
		select {
		case res := <-cmd.reply:
			return res, nil
		default:
			return result{}, ErrHubClosed
		}
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Connect adds sub to the active set. Once Connect returns, every later
// Broadcast is queued for sub.
func (h *Hub) Connect(ctx context.Context, sub Subscriber) (SubscriberID, error) {
	res, err := h.submit(ctx, command{kind: cmdConnect, sub: sub})
	return res.id, err
}

// Disconnect removes and closes the subscriber. Unknown ids are ignored.
func (h *Hub) Disconnect(ctx context.Context, id SubscriberID) error {
	_, err := h.submit(ctx, command{kind: cmdDisconnect, id: id})
	return err
}

// Broadcast queues event for every active subscriber and returns the number
// of subscribers that accepted it. Delivery happens asynchronously in queue
// order. Subscribers with a full outbox are evicted and do not affect delivery
// to the rest.
func (h *Hub) Broadcast(ctx context.Context, event Event) (int, error) {
	res, err := h.submit(ctx, command{kind: cmdBroadcast, event: event})
	return res.count, err
}

// Emit broadcasts event, discarding the delivery count.
func (h *Hub) Emit(ctx context.Context, event Event) error {
	_, err := h.Broadcast(ctx, event)
	return err
}

// Receive handles an inbound message from subscriber id by replying with a
// pong to that subscriber only. The message content is not interpreted.
func (h *Hub) Receive(ctx context.Context, id SubscriberID, _ []byte) error {
	_, err := h.submit(ctx, command{kind: cmdReply, id: id, event: Pong()})
	return err
}

// Count returns the number of active subscribers.
func (h *Hub) Count(ctx context.Context) (int, error) {
	res, err := h.submit(ctx, command{kind: cmdCount})
	return res.count, err
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
