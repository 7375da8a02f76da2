// Package tcpadapter implements transport.AsyncDriver over raw TCP with a
// 4-byte big-endian length-prefixed framing, built directly on stdlib net
// since no third-party raw-TCP framing library fits a plain length-prefix
// protocol.
package tcpadapter

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("tcp", New)
}

const maxFrameSize = 16 << 20 // 16MiB

type envelope struct {
	Type     string         `json:"type"`
	Payload  any            `json:"payload"`
	TraceID  string         `json:"traceId,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Driver implements transport.AsyncDriver over TCP sockets: one read loop
// per accepted connection server-side and one read loop for the client
// connection.
type Driver struct {
	codec codec.Codec

	ln    net.Listener
	onMsg transport.InboundHandler

	mu    sync.RWMutex
	conns map[net.Conn]struct{}

	client net.Conn
}

// New constructs a tcpadapter.Driver using c to encode/decode frame bodies.
func New(c codec.Codec) *Driver {
	return &Driver{codec: c, conns: map[net.Conn]struct{}{}}
}

func (d *Driver) Characteristics() transport.Characteristics {
	return transport.Characteristics{Type: "tcp", Async: true, SupportsMock: true, Streaming: true, RequiresConnection: true, Bidirectional: true}
}

func (d *Driver) StartServer(ctx context.Context, listen message.Address, onMessage transport.InboundHandler) error {
	d.onMsg = onMessage
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", listen.Host, listen.Port))
	if err != nil {
		return err
	}
	d.ln = ln
	go d.acceptLoop(ctx)
	return nil
}

func (d *Driver) acceptLoop(ctx context.Context) {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns[conn] = struct{}{}
		d.mu.Unlock()
		go d.readLoop(ctx, conn)
	}
}

func (d *Driver) readLoop(ctx context.Context, conn net.Conn) {
	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		raw, err := readFrame(conn)
		if err != nil {
			return
		}
		msg, err := d.decode(ctx, raw)
		if err != nil {
			slog.Warn("tcpadapter: invalid frame", "error", err)
			continue
		}
		if d.onMsg != nil {
			d.onMsg(ctx, msg)
		}
	}
}

func (d *Driver) StopServer(ctx context.Context) error {
	if d.ln == nil {
		return nil
	}
	return d.ln.Close()
}

func (d *Driver) CreateClient(ctx context.Context, target message.Address, onMessage transport.InboundHandler) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", target.Host, target.Port))
	if err != nil {
		return fmt.Errorf("tcpadapter: dial: %w", err)
	}
	d.client = conn
	d.onMsg = onMessage
	go d.readLoop(ctx, conn)
	return nil
}

func (d *Driver) CloseClient(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}

// SendMessage writes msg on the client connection, or broadcasts to every
// accepted server connection when called from the server side.
func (d *Driver) SendMessage(ctx context.Context, msg message.Message) error {
	raw, err := d.encode(ctx, msg)
	if err != nil {
		return err
	}
	if d.client != nil {
		return writeFrame(d.client, raw)
	}

	d.mu.RLock()
	conns := make([]net.Conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.RUnlock()
	for _, c := range conns {
		if err := writeFrame(c, raw); err != nil {
			slog.Warn("tcpadapter: send failed", "error", err)
		}
	}
	return nil
}

func (d *Driver) encode(ctx context.Context, msg message.Message) ([]byte, error) {
	return d.codec.Encode(ctx, envelope{Type: msg.Type, Payload: msg.Payload, TraceID: msg.TraceID, Metadata: msg.Metadata})
}

func (d *Driver) decode(ctx context.Context, raw []byte) (message.Message, error) {
	decoded, err := d.codec.Decode(ctx, raw)
	if err != nil {
		return message.Message{}, err
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return message.Message{}, fmt.Errorf("tcpadapter: malformed frame")
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

func readFrame(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("tcpadapter: frame too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(conn net.Conn, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
