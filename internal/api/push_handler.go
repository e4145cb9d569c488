package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/platform/logger"
)

// MaxInboundMessageBytes caps a single client message on the push channel.
const MaxInboundMessageBytes = 4096

// controlWriteTimeout bounds pong and close replies.
const controlWriteTimeout = 5 * time.Second

var errMessageTooLarge = errors.New("inbound message too large")

// Hub is the part of the notification hub the push channel uses.
type Hub interface {
	Connect(ctx context.Context, sub events.Subscriber) (events.SubscriberID, error)
	Disconnect(ctx context.Context, id events.SubscriberID) error
	Receive(ctx context.Context, id events.SubscriberID, msg []byte) error
}

// PushHandler serves the websocket push channel. Each connection is
// registered with the hub for as long as its read loop runs; every inbound
// message is handed to the hub, which answers with a pong.
type PushHandler struct {
	hub Hub
}

// NewPushHandler creates a PushHandler.
func NewPushHandler(hub Hub) *PushHandler {
	return &PushHandler{hub: hub}
}

// ServeHTTP upgrades the request and runs the connection's read loop.
func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		// UpgradeHTTP has already written the error response.
		log.DebugContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	sub := newWSSubscriber(conn)
	defer func() { _ = sub.Close() }()

	id, err := h.hub.Connect(ctx, sub)
	if err != nil {
		log.WarnContext(ctx, "failed to register subscriber", "error", err)
		return
	}
	log = log.With("subscriber_id", id)
	defer func() {
		if err := h.hub.Disconnect(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, events.ErrHubClosed) {
			log.DebugContext(ctx, "failed to disconnect subscriber", "error", err)
		}
	}()

	for {
		msg, err := sub.readMessage()
		if err != nil {
			log.DebugContext(ctx, "push connection closed", "error", err)
			return
		}
		if err := h.hub.Receive(ctx, id, msg); err != nil {
			log.DebugContext(ctx, "hub rejected message", "error", err)
			return
		}
	}
}

// wsSubscriber adapts a server-side websocket connection to events.Subscriber.
// Writes are serialized because the hub and the read loop both write frames.
type wsSubscriber struct {
	conn      net.Conn
	reader    *wsutil.Reader
	mu        sync.Mutex
	closeOnce sync.Once
}

var _ events.Subscriber = (*wsSubscriber)(nil)

func newWSSubscriber(conn net.Conn) *wsSubscriber {
	s := &wsSubscriber{conn: conn}
	s.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: s.handleControl,
	}
	return s
}

// Send writes event as a text frame, honouring ctx's deadline.
func (s *wsSubscriber) Send(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	}
	return wsutil.WriteServerText(s.conn, data)
}

// Close closes the underlying connection, which also ends the read loop.
func (s *wsSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

// readMessage returns the payload of the next text or binary message,
// answering control frames on the way.
func (s *wsSubscriber) readMessage() ([]byte, error) {
	for {
		hdr, err := s.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := s.handleControl(hdr, s.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := s.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}

		msg, err := io.ReadAll(io.LimitReader(s.reader, MaxInboundMessageBytes+1))
		if err != nil {
			return nil, err
		}
		if len(msg) > MaxInboundMessageBytes {
			s.writeClose(ws.StatusMessageTooBig, "message too large")
			return nil, errMessageTooLarge
		}
		return msg, nil
	}
}

func (s *wsSubscriber) handleControl(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	switch hdr.OpCode {
	case ws.OpPing:
		return s.writeFrame(ws.NewPongFrame(payload))
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		s.writeClose(ws.StatusNormalClosure, "")
		return wsutil.ClosedError{Code: code, Reason: reason}
	}
	return nil
}

func (s *wsSubscriber) writeClose(code ws.StatusCode, reason string) {
	_ = s.writeFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
}

func (s *wsSubscriber) writeFrame(f ws.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(controlWriteTimeout)); err != nil {
		return err
	}
	defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	return ws.WriteFrame(s.conn, f)
}
