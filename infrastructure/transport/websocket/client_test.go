package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/retry"
)

type staticTokens struct {
	token string
}

func (s staticTokens) Current(context.Context) (string, error) { return s.token, nil }
func (s staticTokens) Invalidate()                             {}

func testConfig(url string) Config {
	return Config{
		URL:              url,
		HandshakeTimeout: time.Second,
		WriteWait:        time.Second,
		PongWait:         5 * time.Second,
		Backoff:          retry.NewPolicy(10*time.Millisecond, 50*time.Millisecond, 2.0, 0),
	}
}

func newTestClient(url string) *Client {
	return NewClient(testConfig(url), staticTokens{token: "token-1"}, zap.NewNop(), observability.NewCollector("wstest"))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// waitForState drains StateChanges until the wanted state shows up.
func waitForState(t *testing.T, client *Client, want ports.ConnState) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change := <-client.StateChanges():
			if change.Current == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached state %s, currently %s", want, client.State())
		}
	}
}

func TestSend_NotConnectedBeforeConnect(t *testing.T) {
	client := newTestClient("ws://localhost:1")

	err := client.Send(context.Background(), []byte("{}"))
	assert.True(t, pkgerrors.IsNotConnected(err))
}

func TestConnect_DeliversInboundFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":true}`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(wsURL(srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	waitForState(t, client, ports.StateOpen)

	select {
	case frame := <-client.Inbound():
		assert.JSONEq(t, `{"hello":true}`, string(frame))
	case <-time.After(3 * time.Second):
		t.Fatal("no inbound frame")
	}

	assert.Equal(t, "Bearer token-1", gotAuth.Load())
}

func TestConnect_SecondCallConflicts(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(wsURL(srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	err := client.Connect(context.Background())
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var accepts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if accepts.Add(1) == 1 {
			// Drop the first connection immediately to force a reconnect.
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(wsURL(srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	waitForState(t, client, ports.StateOpen)
	waitForState(t, client, ports.StateReconnecting)
	waitForState(t, client, ports.StateOpen)

	assert.GreaterOrEqual(t, accepts.Load(), int32(2))
}

func TestSend_RoundTripWhileOpen(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(wsURL(srv))
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	waitForState(t, client, ports.StateOpen)
	require.NoError(t, client.Send(context.Background(), []byte(`{"op":"ping"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"op":"ping"}`, string(data))
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestExpireSession_StopsReconnecting(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var accepts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepts.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(wsURL(srv))
	require.NoError(t, client.Connect(context.Background()))

	waitForState(t, client, ports.StateOpen)
	dialed := accepts.Load()

	client.ExpireSession()
	waitForState(t, client, ports.StateSessionExpired)
	assert.Equal(t, ports.StateSessionExpired, client.State())

	err := client.Send(context.Background(), []byte("{}"))
	assert.True(t, pkgerrors.IsNotConnected(err))

	// No new dial attempts after expiry.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, dialed, accepts.Load())

	// A fresh Connect starts over.
	require.NoError(t, client.Connect(context.Background()))
	waitForState(t, client, ports.StateOpen)
	require.NoError(t, client.Close())
}
