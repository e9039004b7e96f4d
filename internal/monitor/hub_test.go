package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/riskmap/internal/timeutil"
)

type wsFrame struct {
	Type string `json:"type"`
	Data struct {
		Seq        uint64 `json:"seq"`
		Mode       string `json:"mode"`
		BufferSize int    `json:"bufferSize"`
	} `json:"data"`
}

func startHub(t *testing.T) (*Monitor, *Hub, *httptest.Server, context.CancelFunc, <-chan error) {
	t.Helper()
	mon, err := New(Config{Source: &scriptedSource{}, Clock: timeutil.NewMockClock(testStart)})
	require.NoError(t, err)

	hub := NewHub()
	hub.OnConnect(func() *Message {
		f := mon.Frame()
		if f == nil {
			return nil
		}
		return &Message{Type: MessageTypeFrame, Data: f}
	})
	mon.Subscribe(hub.PublishFrame)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	srv := httptest.NewServer(NewWebServer(WebServerConfig{Monitor: mon, Hub: hub}).Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	return mon, hub, srv, cancel, done
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsFrame
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_WelcomeAndBroadcast(t *testing.T) {
	mon, hub, srv, _, _ := startHub(t)
	mon.Seed()

	conn := dial(t, srv)
	welcome := readFrame(t, conn)
	assert.Equal(t, MessageTypeFrame, welcome.Type)
	assert.Equal(t, uint64(1), welcome.Data.Seq)
	assert.Equal(t, 5, welcome.Data.BufferSize)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	mon.Tick()
	next := readFrame(t, conn)
	assert.Equal(t, uint64(2), next.Data.Seq)
	assert.Equal(t, 6, next.Data.BufferSize)
	assert.Equal(t, "2d", next.Data.Mode)
}

func TestHub_NoWelcomeBeforeFirstFrame(t *testing.T) {
	mon, hub, srv, _, _ := startHub(t)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	mon.Seed()
	msg := readFrame(t, conn)
	assert.Equal(t, uint64(1), msg.Data.Seq)
}

func TestHub_ClientDisconnect(t *testing.T) {
	_, hub, srv, _, _ := startHub(t)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	_, hub, srv, cancel, done := startHub(t)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "hub shutdown closes the socket")

	// New connections after shutdown are closed straight away.
	late := dial(t, srv)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 200; i++ {
		hub.Broadcast(Message{Type: MessageTypeFrame})
	}
	assert.Equal(t, 0, hub.ClientCount())
}
