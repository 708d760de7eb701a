package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testTransportConfig(url string) TransportConfig {
	return TransportConfig{
		URL:              url,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		BufferSize:       100,
	}
}

func TestWebSocketTransport_ConnectAndClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := NewWebSocketTransport(testTransportConfig(wsURL(server)), testLogger())

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := tr.Close(closeCodeNormal, ""); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Second close is a no-op.
	if err := tr.Close(closeCodeNormal, ""); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// A closed transport cannot reconnect; dial a fresh one instead.
	if err := tr.Connect(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestWebSocketTransport_CloseDuringDialReleasesSocket(t *testing.T) {
	dialEntered := make(chan struct{})
	release := make(chan struct{})
	serverDone := make(chan struct{})

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the handshake until the client has called Close.
		close(dialEntered)
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			close(serverDone)
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		close(serverDone)
	}))
	defer server.Close()

	tr := NewWebSocketTransport(testTransportConfig(wsURL(server)), testLogger())

	connectErr := make(chan error, 1)
	go func() { connectErr <- tr.Connect(context.Background()) }()

	<-dialEntered
	if err := tr.Close(closeCodeNormal, "client disconnect"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	close(release)

	if err := <-connectErr; err != ErrAlreadyClosed {
		t.Errorf("Connect racing Close = %v, want ErrAlreadyClosed", err)
	}

	// The handshake completed server side; the fresh socket must still
	// be released, observable as the server's read returning.
	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("socket left open after Close raced Connect")
	}
}

func TestWebSocketTransport_Send(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	tr := NewWebSocketTransport(testTransportConfig(wsURL(server)), testLogger())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close(closeCodeNormal, "")

	want := []byte(`{"action":"subscribe","channels":["portfolio_status"]}`)
	if err := tr.Send(want); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	waitFor(t, "server receipt", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return string(received) == string(want)
	})
}

func TestWebSocketTransport_SendNotConnected(t *testing.T) {
	tr := NewWebSocketTransport(testTransportConfig("ws://localhost:1"), testLogger())

	if err := tr.Send([]byte("x")); err != ErrNotConnected {
		t.Errorf("Send before Connect = %v, want ErrNotConnected", err)
	}
}

func TestWebSocketTransport_MessagesInReceiptOrder(t *testing.T) {
	frames := []string{
		`{"type":"data_update","channel":"signal_feed","data":{"n":1}}`,
		`{"type":"data_update","channel":"signal_feed","data":{"n":2}}`,
		`{"type":"data_update","channel":"signal_feed","data":{"n":3}}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr := NewWebSocketTransport(testTransportConfig(wsURL(server)), testLogger())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close(closeCodeNormal, "")

	timeout := time.After(2 * time.Second)
	for i, want := range frames {
		select {
		case msg := <-tr.Messages():
			if string(msg.Data) != want {
				t.Errorf("message %d = %s, want %s", i, msg.Data, want)
			}
			if msg.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for message %d", i)
		}
	}
}

func TestWebSocketTransport_ServerCloseSurfacesError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately.
	})
	defer server.Close()

	tr := NewWebSocketTransport(testTransportConfig(wsURL(server)), testLogger())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close(closeCodeNormal, "")

	select {
	case err := <-tr.Errors():
		if err == nil {
			t.Error("expected a non-nil transport error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transport error")
	}
}

// End to end: controller over a real WebSocket against a backend that
// confirms subscriptions and answers pings.
func TestController_OverWebSocket(t *testing.T) {
	var mu sync.Mutex
	var gotPing bool

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{
			"type":               "connection_established",
			"available_channels": []string{"portfolio_status", "signal_feed"},
		})
		for {
			var cmd Command
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			switch cmd.Action {
			case ActionSubscribe:
				conn.WriteJSON(map[string]any{
					"type":     "subscription_confirmed",
					"channels": cmd.Channels,
				})
			case ActionPing:
				mu.Lock()
				gotPing = true
				mu.Unlock()
				conn.WriteJSON(map[string]any{"type": "pong"})
			}
		}
	})
	defer server.Close()

	cfg := DefaultConfig(wsURL(server))
	cfg.PingInterval = 20 * time.Millisecond
	c := New(cfg, testLogger())
	defer c.Disconnect()

	rec := &eventRecorder{}
	c.On(EventChannelsAvailable, rec.handler)
	c.On(EventSubscriptionsConfirmed, rec.handler)
	c.On(EventDataUpdate, rec.handler)

	c.Subscribe("portfolio_status")
	c.Connect()

	waitFor(t, "confirmation", func() bool { return len(c.Confirmed()) == 1 })
	waitFor(t, "channel announcement", func() bool { return rec.count(EventChannelsAvailable) == 1 })
	waitFor(t, "heartbeat ping", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotPing
	})

	confirmed := rec.byName(EventSubscriptionsConfirmed)
	if len(confirmed) == 0 {
		t.Fatal("no subscriptions_confirmed event")
	}
	var payload []string
	if b, err := json.Marshal(confirmed[0].Payload); err == nil {
		json.Unmarshal(b, &payload)
	}
	if len(payload) != 1 || payload[0] != "portfolio_status" {
		t.Errorf("confirmed payload = %v", payload)
	}
}
