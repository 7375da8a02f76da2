// Command testurio-example wires two concrete scenarios end-to-end, proving
// the engine/adapter boundary compiles and runs. The first reproduces a sync
// request/mock reply flow: a mock backend server replies to a client
// request, and the client asserts on the response. The second wires a Proxy
// between a real client and a real backend over WebSocket and proves the
// mock-respond short circuit: the proxy answers the client directly and the
// request never reaches the backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/udamir/testurio/pkg/adapter/httpadapter"
	"github.com/udamir/testurio/pkg/adapter/wsadapter"
	"github.com/udamir/testurio/pkg/codec/jsoncodec"
	"github.com/udamir/testurio/pkg/component"
	"github.com/udamir/testurio/pkg/hook"
	"github.com/udamir/testurio/pkg/message"
	"github.com/udamir/testurio/pkg/reporter"
	"github.com/udamir/testurio/pkg/scenario"
	"github.com/udamir/testurio/pkg/stepbuilder"
	"github.com/udamir/testurio/pkg/testcase"
)

func main() {
	codec := jsoncodec.New()

	backend := component.NewSyncServer("backend", httpadapter.New(codec), message.Address{Host: "127.0.0.1", Port: 3000}, nil)
	api := component.NewSyncClient("api", httpadapter.New(codec), message.Address{Host: "127.0.0.1", Port: 3000})

	realBackend := component.NewAsyncServer("realBackend", wsadapter.New(codec), message.Address{Host: "127.0.0.1", Port: 3010})
	proxy := component.NewProxy("proxy", wsadapter.New(codec), wsadapter.New(codec),
		message.Address{Host: "127.0.0.1", Port: 3011}, message.Address{Host: "127.0.0.1", Port: 3010})
	proxyClient := component.NewAsyncClient("proxyClient", wsadapter.New(codec), message.Address{Host: "127.0.0.1", Port: 3011})

	var backendCalled bool
	realBackend.RegisterHook(&hook.Hook{
		Matcher:  hook.Matcher{Literal: "getUser"},
		Handlers: []hook.Handler{hook.Transform("mark backend called", func(ctx context.Context, v any) (any, error) {
			backendCalled = true
			return v, nil
		})},
	})

	scn, err := scenario.New([]component.Component{backend, api, realBackend, proxy, proxyClient},
		scenario.WithReporter(reporter.NewConsole()),
		scenario.WithTimeout(30*time.Second),
		scenario.WithRecording(true),
	)
	if err != nil {
		slog.Error("scenario construction failed", "error", err)
		os.Exit(1)
	}

	syncTC := testcase.New("sync request/mock reply", func(b *testcase.Builder) {
		srv := b.Use(backend).(*stepbuilder.SyncServerBuilder)
		client := b.Use(api).(*stepbuilder.SyncClientBuilder)

		srv.OnRequest("getUser", map[string]any{"method": "GET", "path": "/users/1"}).
			MockResponse(func(_ context.Context, _ any) (any, error) {
				return map[string]any{"code": 200, "body": map[string]any{"id": 1, "name": "Alice"}}, nil
			})

		client.Request("getUser", nil, map[string]any{"method": "GET", "path": "/users/1"})
		client.OnResponse("getUser").Assert("name is Alice", func(resp message.Message) bool {
			body, ok := resp.Payload.(map[string]any)
			if !ok {
				return false
			}
			inner, ok := body["body"].(map[string]any)
			return ok && inner["name"] == "Alice"
		})
	})

	proxyTC := testcase.New("proxy mock-respond short circuit", func(b *testcase.Builder) {
		px := b.Use(proxy).(*stepbuilder.ProxyBuilder)
		cli := b.Use(proxyClient).(*stepbuilder.AsyncClientBuilder)

		px.OnRequest("getUser").MockResponse(func(_ context.Context, _ any) (any, error) {
			return message.Message{Type: "getUser", Payload: map[string]any{"id": 1, "name": "Mocked"}}, nil
		})

		wait := cli.WaitEvent("getUser", 5*time.Second)
		cli.SendMessage("getUser", map[string]any{"id": 1})
		wait.Assert("mocked reply and backend never reached", func(resp message.Message) bool {
			body, ok := resp.Payload.(map[string]any)
			return ok && body["name"] == "Mocked" && !backendCalled
		})
	})

	result, err := scn.Run(context.Background(), scenario.Group{syncTC, proxyTC})
	if err != nil {
		slog.Error("scenario run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("scenario passed=%v, test cases=%d, pass rate=%.2f, interactions=%d\n",
		result.Passed, result.TotalTests, result.Summary.PassRate, len(result.Interactions))
	if !result.Passed {
		os.Exit(1)
	}
}
