// Package httpadapter implements transport.SyncDriver over HTTP using gin
// for the server side and the stdlib http.Client for the client side.
package httpadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/udamir/testurio/pkg/adapter"
	"github.com/udamir/testurio/pkg/codec"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/transport"
)

func init() {
	_ = adapter.Default.Register("http", New)
}

// Driver implements transport.SyncDriver over HTTP request/response pairs.
// On the server side an inbound msg.Type is the request method plus the gin
// route pattern ("GET /*path"), and the wire method/path live in
// msg.Metadata, which the step builder's matcherData is checked against.
type Driver struct {
	codec codec.Codec

	server   *http.Server
	router   *gin.Engine
	onReq    transport.InboundHandler

	client *http.Client
	target message.Address

	mu       sync.Mutex
	waiters  map[string]chan message.Message
}

// New constructs an httpadapter.Driver using c for request/response body
// encoding (the default codec is JSON, codec/jsoncodec).
func New(c codec.Codec) *Driver {
	return &Driver{codec: c, waiters: map[string]chan message.Message{}}
}

func (d *Driver) Characteristics() transport.Characteristics {
	return transport.Characteristics{Type: "http", Async: false, SupportsMock: true, SupportsProxy: true, RequiresConnection: false}
}

// StartServer binds listen and routes every method/path through onRequest,
// matching the gin.Default() + generic route registration idiom.
func (d *Driver) StartServer(ctx context.Context, listen message.Address, onRequest transport.InboundHandler) error {
	d.onReq = onRequest
	gin.SetMode(gin.ReleaseMode)
	d.router = gin.New()
	d.router.NoRoute(d.handle)
	d.router.NoMethod(d.handle)
	for _, m := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		d.router.Handle(m, "/*path", d.handle)
	}

	addr := fmt.Sprintf("%s:%d", listen.Host, listen.Port)
	d.server = &http.Server{Addr: addr, Handler: d.router}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() { _ = d.server.Serve(ln) }()
	return nil
}

func (d *Driver) handle(c *gin.Context) {
	var body any
	raw, _ := io.ReadAll(c.Request.Body)
	if len(raw) > 0 {
		decoded, err := d.codec.Decode(c.Request.Context(), raw)
		if err == nil {
			body = decoded
		}
	}

	traceID := c.GetHeader("X-Trace-Id")
	if traceID == "" {
		traceID = message.NewTraceID()
	}

	req := message.Message{
		Type:    c.Request.Method + " " + c.FullPath(),
		Payload: body,
		TraceID: traceID,
		Metadata: map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		},
	}

	replyCh := make(chan message.Message, 1)
	d.mu.Lock()
	d.waiters[traceID] = replyCh
	d.mu.Unlock()

	if d.onReq != nil {
		d.onReq(c.Request.Context(), req)
	}

	select {
	case reply := <-replyCh:
		d.writeReply(c, reply)
	case <-time.After(30 * time.Second):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "no handler responded"})
	}

	d.mu.Lock()
	delete(d.waiters, traceID)
	d.mu.Unlock()
}

// writeReply unpacks reply.Payload's {code, body} shape=>({code:200, body:{...}})") into a real HTTP status and body.
func (d *Driver) writeReply(c *gin.Context, reply message.Message) {
	status, body := unpackResponse(reply.Payload)
	encoded, err := d.codec.Encode(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(status, "application/json", encoded)
}

func unpackResponse(payload any) (status int, body any) {
	status = http.StatusOK
	m, ok := payload.(map[string]any)
	if !ok {
		return status, payload
	}
	if code, ok := m["code"].(int); ok && code != 0 {
		status = code
	}
	return status, m["body"]
}

// Respond implements transport.SyncDriver's mock/proxy reply path.
func (d *Driver) Respond(ctx context.Context, traceID string, reply message.Message) error {
	d.mu.Lock()
	ch, ok := d.waiters[traceID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("testurio/httpadapter: no pending request for trace %q", traceID)
	}
	ch <- reply
	return nil
}

func (d *Driver) StopServer(ctx context.Context) error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown(ctx)
}

// CreateClient configures the client side's target; gin is server-only, so
// the client side uses the stdlib http.Client directly.
func (d *Driver) CreateClient(ctx context.Context, target message.Address) error {
	d.target = target
	d.client = &http.Client{Timeout: 30 * time.Second}
	return nil
}

func (d *Driver) CloseClient(ctx context.Context) error { return nil }

// Request sends msg as an HTTP request. The method and path come from
// msg.Metadata ("method", "path"); without them the method is GET and the
// path is "/" + msg.Type.
func (d *Driver) Request(ctx context.Context, msg message.Message) (message.Message, error) {
	method, path := splitOperation(msg)
	url := fmt.Sprintf("http://%s:%d%s", d.target.Host, d.target.Port, path)

	var bodyReader io.Reader
	if msg.Payload != nil {
		encoded, err := d.codec.Encode(ctx, msg.Payload)
		if err != nil {
			return message.Message{}, codec.NewEncodeError(d.codec.Name(), err, msg.Payload)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return message.Message{}, err
	}
	req.Header.Set("X-Trace-Id", msg.TraceID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return message.Message{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return message.Message{}, err
	}
	var payload any
	if len(raw) > 0 {
		payload, err = d.codec.Decode(ctx, raw)
		if err != nil {
			return message.Message{}, codec.NewDecodeError(d.codec.Name(), err)
		}
	}
	return message.Message{
		Type:    msg.Type,
		Payload: map[string]any{"code": resp.StatusCode, "body": payload},
		TraceID: msg.TraceID,
	}, nil
}

func splitOperation(msg message.Message) (method, path string) {
	method, _ = msg.Meta("method").(string)
	path, _ = msg.Meta("path").(string)
	if method == "" {
		method = http.MethodGet
	}
	if path == "" {
		path = "/" + msg.Type
	}
	return method, path
}
