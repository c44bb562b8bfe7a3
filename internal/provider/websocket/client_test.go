package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/tiptrails/internal/provider"
	"github.com/OCAP2/tiptrails/pkg/streaming"
)

// Compile-time interface check.
var _ provider.Source = (*Client)(nil)

// testServer mimics the tracking service: it sends the version handshake,
// records control messages and streams whatever is pushed to frames.
func testServer(t *testing.T, frames []string) (*httptest.Server, *controlLog) {
	t.Helper()
	cl := &controlLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		hello, _ := json.Marshal(streaming.VersionMessage{ServiceVersion: "5.1.0", Version: 7})
		if err := c.WriteMessage(ws.TextMessage, hello); err != nil {
			return
		}

		// Stream frames only once the client asked for focus.
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		cl.add(msg)
		for _, f := range frames {
			if err := c.WriteMessage(ws.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			cl.add(msg)
		}
	}))

	return srv, cl
}

type controlLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *controlLog) add(msg []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, string(msg))
}

func (l *controlLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]string, len(l.messages))
	copy(cp, l.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_ReceivesFrames(t *testing.T) {
	srv, cl := testServer(t, []string{
		`{"id":1,"hands":[],"pointables":[]}`,
		`{"event":{"type":"deviceEvent","state":{}}}`,
		`{"id":2,"hands":[{"id":5,"type":"left"}],"pointables":[{"handId":5,"type":1,"tipPosition":[1,2,3]}]}`,
	})
	defer srv.Close()

	var latest provider.Latest
	c := New(Config{URL: wsURL(srv), Background: true}, &latest, nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	require.Eventually(t, func() bool {
		f, ok := c.CurrentFrame()
		return ok && f.ID == 2
	}, 2*time.Second, 10*time.Millisecond)

	f, _ := c.CurrentFrame()
	require.Len(t, f.Hands, 1)
	_, hasFingers := f.Hands[0].Field("fingers")
	assert.True(t, hasFingers)
	assert.Equal(t, uint64(2), latest.Published())
	assert.Equal(t, "5.1.0", c.ServiceVersion())

	require.Eventually(t, func() bool { return len(cl.all()) >= 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := cl.all()
	assert.JSONEq(t, `{"focused":true}`, msgs[0])
	assert.JSONEq(t, `{"background":true}`, msgs[1])
}

func TestClient_CountsUnknownMessages(t *testing.T) {
	srv, _ := testServer(t, []string{`{"foo":"bar"}`, `not json`})
	defer srv.Close()

	var latest provider.Latest
	c := New(Config{URL: wsURL(srv)}, &latest, nil)
	require.NoError(t, c.Connect())
	defer c.Close()

	require.Eventually(t, func() bool { return c.Dropped() == 2 }, 2*time.Second, 10*time.Millisecond)
	_, ok := c.CurrentFrame()
	assert.False(t, ok)
}

func TestClient_DialFailure(t *testing.T) {
	var latest provider.Latest
	c := New(Config{URL: "ws://127.0.0.1:1/v7.json"}, &latest, nil)
	assert.Error(t, c.Connect())
}

func TestClient_DefaultURL(t *testing.T) {
	c := New(Config{}, &provider.Latest{}, nil)
	assert.Equal(t, streaming.DefaultURL, c.cfg.URL)
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, nil)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)}, &provider.Latest{}, nil)
	require.NoError(t, c.Connect())
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
