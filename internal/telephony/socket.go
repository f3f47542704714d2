package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn is one live media-socket connection, adapted from the teacher
// module's transport.Connection: a readLoop goroutine turning inbound
// frames into typed Events, and a writeLoop goroutine serializing
// outbound media/clear/mark messages.
type Conn struct {
	ws *websocket.Conn
	log *slog.Logger

	mu        sync.Mutex
	streamSID string
	closed    bool
	closeOnce sync.Once

	Events chan Event
	out    chan wireOutbound
	done   chan struct{}
}

type wireOutbound struct {
	kind    string // "media", "clear", "mark"
	payload []byte
	name    string
}

// Upgrade upgrades an inbound HTTP request to the media WebSocket and
// starts its read/write loops. The returned Conn's StreamSID is empty
// until the "start" event arrives on Events.
func Upgrade(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("telephony: upgrade failed: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Conn{
		ws:     ws,
		log:    log,
		Events: make(chan Event, 100),
		out:    make(chan wireOutbound, 100),
		done:   make(chan struct{}),
	}

	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// StreamSID returns the stream SID once the start event has arrived.
func (c *Conn) StreamSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamSID
}

func (c *Conn) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("telephony socket read error", "err", err)
			}
			return
		}

		evt, err := ParseEvent(data)
		if err != nil {
			c.log.Warn("telephony socket malformed event", "err", err)
			continue
		}
		if evt.Kind == EventStart {
			c.mu.Lock()
			c.streamSID = evt.Start.StreamSID
			c.mu.Unlock()
		}

		select {
		case c.Events <- evt:
		case <-c.done:
			return
		}
		if evt.Kind == EventStop {
			return
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			if err := c.writeWire(msg); err != nil {
				c.log.Warn("telephony socket write error", "err", err)
				return
			}
		}
	}
}

func (c *Conn) writeWire(msg wireOutbound) error {
	c.mu.Lock()
	sid := c.streamSID
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}

	var frame map[string]any
	switch msg.kind {
	case "media":
		frame = map[string]any{
			"event":     "media",
			"streamSid": sid,
			"media": map[string]string{
				"payload": base64.StdEncoding.EncodeToString(msg.payload),
			},
		}
	case "clear":
		frame = map[string]any{"event": "clear", "streamSid": sid}
	case "mark":
		frame = map[string]any{
			"event":     "mark",
			"streamSid": sid,
			"mark":      map[string]string{"name": msg.name},
		}
	default:
		return fmt.Errorf("telephony: unknown outbound kind %q", msg.kind)
	}

	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// SendMedia enqueues one 20ms μ-law frame for delivery to the caller.
func (c *Conn) SendMedia(ctx context.Context, frame []byte) error {
	return c.enqueue(ctx, wireOutbound{kind: "media", payload: frame})
}

// SendClear tells the telephony side to drop any buffered/queued audio
// immediately, used on barge-in.
func (c *Conn) SendClear(ctx context.Context) error {
	return c.enqueue(ctx, wireOutbound{kind: "clear"})
}

// SendMark requests a mark event be echoed back for playback sync.
func (c *Conn) SendMark(ctx context.Context, name string) error {
	return c.enqueue(ctx, wireOutbound{kind: "mark", name: name})
}

func (c *Conn) enqueue(ctx context.Context, msg wireOutbound) error {
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("telephony: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close idempotently tears down the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		close(c.Events)
		_ = c.ws.Close()
	})
	return nil
}
