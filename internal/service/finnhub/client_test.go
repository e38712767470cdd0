package finnhub

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
)

// fakeFinnhub accepts one connection, records subscriptions, then sends frames.
func fakeFinnhub(t *testing.T, frames []string, subs chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]string
		require.NoError(t, conn.ReadJSON(&msg))
		subs <- msg["symbol"]

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// hold the connection until the client leaves
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientStreamsTicks(t *testing.T) {
	subs := make(chan string, 1)
	srv := fakeFinnhub(t, []string{
		`{"type":"ping"}`,
		`not json`,
		`{"type":"trade","data":[{"s":"AAPL","p":175.5,"v":10,"t":1700000000123}]}`,
	}, subs)

	c := New(Config{APIKey: "secret", WebSocketURL: wsURL(srv), Symbols: []string{" aapl", "AAPL"}}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "AAPL", <-subs)
	assert.Equal(t, []string{"AAPL"}, c.symbols)

	ticks, _ := c.Read(ctx)
	select {
	case tick := <-ticks:
		assert.Equal(t, "AAPL", tick.Symbol)
		assert.Equal(t, 175.5, tick.Price)
		assert.Equal(t, int64(1700000000), tick.Timestamp)
	case <-ctx.Done():
		t.Fatal("no tick received")
	}

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestClientConnectRejected(t *testing.T) {
	srv := fakeFinnhub(t, nil, make(chan string, 1))

	c := New(Config{APIKey: "wrong", WebSocketURL: wsURL(srv)}, nil)
	err := c.Connect(context.Background())
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
}

func TestReadWithoutConnection(t *testing.T) {
	c := New(Config{WebSocketURL: "ws://127.0.0.1:1"}, nil)

	ticks, errs := c.Read(context.Background())
	assert.ErrorIs(t, <-errs, errNotConnected)
	_, open := <-ticks
	assert.False(t, open)
}
