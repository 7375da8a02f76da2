// Package grpcadapter implements transport.SyncDriver (unary) over gRPC
// without a protoc-generated service: a raw-bytes grpc.Codec registered
// under content-subtype "raw" lets the adapter dispatch RPCs by method
// name, so the engine exchanges only the internal Message shape with
// adapters, never generated stubs. The Driver does not implement
// transport.AsyncDriver.
package grpcadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("grpc", New)
	encoding.RegisterCodec(rawCodec{})
}

const rawContentSubtype = "raw"

// rawCodec passes already-encoded bytes through unchanged, letting the
// adapter own message framing via codec.Codec instead of protobuf structs.
type rawCodec struct{}

func (rawCodec) Name() string { return rawContentSubtype }

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("grpcadapter: rawCodec.Marshal expects *[]byte, got %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("grpcadapter: rawCodec.Unmarshal expects *[]byte, got %T", v)
	}
	*b = append([]byte(nil), data...)
	return nil
}

// Driver implements SyncDriver (unary RPC) over one connection/server pair;
// its CreateClient takes no inbound handler, so it does not satisfy
// AsyncDriver. msg.Type carries the service-qualified method name
// ("/pkg.Service/Method").
type Driver struct {
	codec codec.Codec

	server *grpc.Server
	onReq  transport.InboundHandler

	conn   *grpc.ClientConn
	target message.Address

	mu      sync.Mutex
	waiters map[string]chan message.Message
}

// New constructs a grpcadapter.Driver using c to encode/decode message
// payloads into the raw bytes exchanged over the wire.
func New(c codec.Codec) *Driver {
	return &Driver{codec: c, waiters: map[string]chan message.Message{}}
}

func (d *Driver) Characteristics() transport.Characteristics {
	return transport.Characteristics{Type: "grpc", Async: false, SupportsMock: true, SupportsProxy: true, Streaming: true, RequiresConnection: true}
}

// StartServer registers a single catch-all unknown-service handler so any
// method name reaches onRequest, handling every RPC generically instead of
// one handler per method.
func (d *Driver) StartServer(ctx context.Context, listen message.Address, onRequest transport.InboundHandler) error {
	d.onReq = onRequest
	d.server = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(d.handleStream),
	)

	lis, err := netListen(listen)
	if err != nil {
		return err
	}
	go func() {
		if err := d.server.Serve(lis); err != nil {
			slog.Warn("grpcadapter: server exited", "error", err)
		}
	}()
	return nil
}

func (d *Driver) handleStream(srv any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	ctx := stream.Context()

	for {
		var raw []byte
		if err := stream.RecvMsg(&raw); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		msg, err := d.decodeMessage(ctx, method, raw)
		if err != nil {
			slog.Warn("grpcadapter: decode failed", "error", err)
			continue
		}

		replyCh := make(chan message.Message, 1)
		d.registerWaiter(msg.TraceID, replyCh)
		if d.onReq != nil {
			d.onReq(ctx, msg)
		}
		reply := <-replyCh
		d.unregisterWaiter(msg.TraceID)

		out, err := d.encodeMessage(ctx, reply)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(&out); err != nil {
			return err
		}
	}
}

func (d *Driver) StopServer(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	d.server.GracefulStop()
	return nil
}

// CreateClient dials target with plaintext credentials — scenarios run
// against local mock/test backends only.
func (d *Driver) CreateClient(ctx context.Context, target message.Address) error {
	d.target = target
	addr := fmt.Sprintf("%s:%d", target.Host, target.Port)
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return fmt.Errorf("grpcadapter: dial %s: %w", addr, err)
	}
	d.conn = conn
	return nil
}

func (d *Driver) CloseClient(ctx context.Context) error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Request performs a unary call to msg.Type and waits for the single reply.
func (d *Driver) Request(ctx context.Context, msg message.Message) (message.Message, error) {
	raw, err := d.encodeMessage(ctx, msg)
	if err != nil {
		return message.Message{}, err
	}
	var respRaw []byte
	if msg.TraceID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-trace-id", msg.TraceID)
	}
	if err := d.conn.Invoke(ctx, msg.Type, &raw, &respRaw); err != nil {
		return message.Message{}, fmt.Errorf("grpcadapter: invoke %s: %w", msg.Type, err)
	}
	return d.decodeMessage(ctx, msg.Type, respRaw)
}

// Respond delivers the matched hook's reply to the blocked handleStream
// goroutine awaiting traceID.
func (d *Driver) Respond(ctx context.Context, traceID string, reply message.Message) error {
	d.mu.Lock()
	ch, ok := d.waiters[traceID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("grpcadapter: no pending call for trace %q", traceID)
	}
	ch <- reply
	return nil
}

// SendMessage opens a new bidirectional stream to msg.Type on every call,
// sends msg on it and closes the send side; replies on that stream are not
// read.
func (d *Driver) SendMessage(ctx context.Context, msg message.Message) error {
	desc := &grpc.StreamDesc{StreamName: msg.Type, ClientStreams: true, ServerStreams: true}
	stream, err := d.conn.NewStream(ctx, desc, msg.Type)
	if err != nil {
		return fmt.Errorf("grpcadapter: new stream %s: %w", msg.Type, err)
	}
	raw, err := d.encodeMessage(ctx, msg)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&raw); err != nil {
		return err
	}
	return stream.CloseSend()
}

func (d *Driver) encodeMessage(ctx context.Context, msg message.Message) ([]byte, error) {
	return d.codec.Encode(ctx, map[string]any{
		"type":     msg.Type,
		"payload":  msg.Payload,
		"traceId":  msg.TraceID,
		"metadata": msg.Metadata,
	})
}

func (d *Driver) decodeMessage(ctx context.Context, method string, raw []byte) (message.Message, error) {
	decoded, err := d.codec.Decode(ctx, raw)
	if err != nil {
		return message.Message{}, err
	}
	m, _ := decoded.(map[string]any)
	msg := message.Message{Type: method}
	if m != nil {
		if t, ok := m["type"].(string); ok && t != "" {
			msg.Type = t
		}
		msg.Payload = m["payload"]
		if tid, ok := m["traceId"].(string); ok {
			msg.TraceID = tid
		}
		if meta, ok := m["metadata"].(map[string]any); ok {
			msg.Metadata = meta
		}
	}
	if msg.TraceID == "" {
		msg.TraceID = message.NewTraceID()
	}
	return msg, nil
}

func (d *Driver) registerWaiter(traceID string, ch chan message.Message) {
	d.mu.Lock()
	d.waiters[traceID] = ch
	d.mu.Unlock()
}

func (d *Driver) unregisterWaiter(traceID string) {
	d.mu.Lock()
	delete(d.waiters, traceID)
	d.mu.Unlock()
}

func netListen(addr message.Address) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("%s:%d", addr.Host, addr.Port))
}
