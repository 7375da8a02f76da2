// Package wsadapter implements transport.AsyncDriver over WebSocket using
// coder/websocket: one read loop goroutine per connection feeding inbound
// messages to a callback, with broadcast implemented as a
// snapshot-then-send over the connection set.
package wsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("websocket", New)
}

// wireEnvelope is the JSON shape exchanged on the socket; Type/Payload map
// directly onto message.Message.
type wireEnvelope struct {
	Type     string         `json:"type"`
	Payload  any            `json:"payload"`
	TraceID  string         `json:"traceId,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Driver implements transport.AsyncDriver over one WebSocket connection
// (client side) or a pool of accepted connections (server side).
type Driver struct {
	codec codec.Codec

	server   *http.Server
	onMsg    transport.InboundHandler
	mu       sync.RWMutex
	conns    map[string]*websocket.Conn

	clientConn *websocket.Conn
	clientCtx  context.Context
}

// New constructs a wsadapter.Driver using c to encode/decode payload values.
func New(c codec.Codec) *Driver {
	return &Driver{codec: c, conns: map[string]*websocket.Conn{}}
}

func (d *Driver) Characteristics() transport.Characteristics {
	return transport.Characteristics{Type: "websocket", Async: true, SupportsMock: true, Streaming: true, RequiresConnection: true, Bidirectional: true}
}

// StartServer accepts WebSocket upgrades on listen and, per connection,
// spawns a read loop: register, read until error, unregister.
func (d *Driver) StartServer(ctx context.Context, listen message.Address, onMessage transport.InboundHandler) error {
	d.onMsg = onMessage
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		d.handleConnection(ctx, conn)
	})

	addr := fmt.Sprintf("%s:%d", listen.Host, listen.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	d.server = &http.Server{Addr: addr, Handler: mux}
	go func() { _ = d.server.Serve(ln) }()
	return nil
}

func (d *Driver) handleConnection(ctx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	d.mu.Lock()
	d.conns[connID] = conn
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.conns, connID)
		d.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msg, err := d.decodeEnvelope(ctx, raw)
		if err != nil {
			slog.Warn("wsadapter: invalid frame", "error", err)
			continue
		}
		if d.onMsg != nil {
			d.onMsg(ctx, msg)
		}
	}
}

func (d *Driver) StopServer(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}

// CreateClient dials target and starts a background read loop feeding
// onMessage.
func (d *Driver) CreateClient(ctx context.Context, target message.Address, onMessage transport.InboundHandler) error {
	url := fmt.Sprintf("ws://%s:%d%s", target.Host, target.Port, target.Path)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("wsadapter: dial: %w", err)
	}
	d.clientConn = conn
	d.clientCtx = ctx
	d.onMsg = onMessage
	go d.readLoop(ctx, conn)
	return nil
}

func (d *Driver) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msg, err := d.decodeEnvelope(ctx, raw)
		if err != nil {
			slog.Warn("wsadapter: invalid frame", "error", err)
			continue
		}
		if d.onMsg != nil {
			d.onMsg(ctx, msg)
		}
	}
}

func (d *Driver) CloseClient(ctx context.Context) error {
	if d.clientConn == nil {
		return nil
	}
	return d.clientConn.Close(websocket.StatusNormalClosure, "")
}

// SendMessage writes msg on the client connection, or broadcasts it to
// every accepted server connection if called server-side, via a
// snapshot-then-send over the connection set.
func (d *Driver) SendMessage(ctx context.Context, msg message.Message) error {
	raw, err := d.encodeEnvelope(ctx, msg)
	if err != nil {
		return err
	}
	if d.clientConn != nil {
		return d.clientConn.Write(ctx, websocket.MessageText, raw)
	}

	d.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(d.conns))
	for _, c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.RUnlock()
	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, raw); err != nil {
			slog.Warn("wsadapter: send failed", "error", err)
		}
	}
	return nil
}

func (d *Driver) encodeEnvelope(ctx context.Context, msg message.Message) ([]byte, error) {
	payload := msg.Payload
	return d.codec.Encode(ctx, wireEnvelope{Type: msg.Type, Payload: payload, TraceID: msg.TraceID, Metadata: msg.Metadata})
}

func (d *Driver) decodeEnvelope(ctx context.Context, raw []byte) (message.Message, error) {
	decoded, err := d.codec.Decode(ctx, raw)
	if err != nil {
		return message.Message{}, err
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return message.Message{}, fmt.Errorf("wsadapter: malformed envelope")
	}
	msg := message.Message{}
	if t, ok := m["type"].(string); ok {
		msg.Type = t
	}
	msg.Payload = m["payload"]
	if tid, ok := m["traceId"].(string); ok {
		msg.TraceID = tid
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		msg.Metadata = meta
	}
	return msg, nil
}
