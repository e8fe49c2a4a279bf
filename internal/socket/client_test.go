package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// pushServer is a fake chat backend. Every accepted connection is parked in
// conns so tests can feed frames or read what the client emitted.
type pushServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	upgrades atomic.Int32
	reject   atomic.Bool
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.upgrades.Add(1)
		if ps.reject.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conns = append(ps.conns, conn)
		ps.mu.Unlock()
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.Server.URL, "http")
}

// waitConn blocks until the server has accepted at least n connections and
// returns the n-th.
func (ps *pushServer) waitConn(t *testing.T, n int) *websocket.Conn {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		ps.mu.Lock()
		if len(ps.conns) >= n {
			conn := ps.conns[n-1]
			ps.mu.Unlock()
			return conn
		}
		ps.mu.Unlock()
		select {
		case <-deadline:
			t.Fatalf("server never saw connection %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestClient(cfg Config) *Client {
	return NewClient(cfg, zerolog.Nop())
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{URL: ps.url()})
	defer c.Disconnect()

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.True(t, c.IsLive())

	// Repeat connects while live do not dial again.
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Connect(ctx))
	}
	require.Equal(t, int32(1), ps.upgrades.Load())
}

func TestConcurrentConnectsShareOneAttempt(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{URL: ps.url()})
	defer c.Disconnect()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), ps.upgrades.Load())
}

func TestConnectFailureReturnsError(t *testing.T) {
	c := newTestClient(Config{URL: "ws://127.0.0.1:1"})
	defer c.Disconnect()

	err := c.Connect(context.Background())
	require.Error(t, err)
	require.False(t, c.IsLive())
}

func TestDispatchInboundEvents(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{URL: ps.url()})
	defer c.Disconnect()

	var (
		mu       sync.Mutex
		messages []domain.Message
		presence = map[string]domain.Presence{}
		typing   = map[string]bool{}
		notices  []domain.UnreadNotice
		errors   []string
	)
	c.OnMessage(func(m domain.Message) {
		mu.Lock()
		messages = append(messages, m)
		mu.Unlock()
	})
	c.OnPresence(func(id string, st domain.Presence) {
		mu.Lock()
		presence[id] = st
		mu.Unlock()
	})
	c.OnTyping(func(id string, ty bool) {
		mu.Lock()
		typing[id] = ty
		mu.Unlock()
	})
	c.OnUnread(func(n domain.UnreadNotice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	})
	c.OnMessageError(func(reason string) {
		mu.Lock()
		errors = append(errors, reason)
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)

	frames := []string{
		`{"event":"new_message","data":{"id":41,"sender_id":7,"sender_name":"Ana Ruiz","message":"hola","timestamp":"2026-08-30T10:00:00Z","is_mine":false}}`,
		`{"event":"user_status","data":{"user_id":"a1b2c3","status":"online"}}`,
		`{"event":"user_typing","data":{"user_id":7,"is_typing":true}}`,
		`{"event":"unread_message","data":{"sender_id":7,"sender_name":"Ana Ruiz","message_preview":"hola"}}`,
		`{"event":"message_error","data":{"error":"receiver not found"}}`,
		`{"event":"bogus_event","data":{}}`,
		`not json at all`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) == 1 && len(presence) == 1 && len(typing) == 1 &&
			len(notices) == 1 && len(errors) == 1
	}, "not all events dispatched")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "41", messages[0].ID)
	require.Equal(t, "7", messages[0].SenderID)
	require.Equal(t, "hola", messages[0].Body)
	require.Equal(t, domain.PresenceOnline, presence["a1b2c3"])
	require.True(t, typing["7"])
	require.Equal(t, "Ana Ruiz", notices[0].SenderName)
	require.Equal(t, "receiver not found", errors[0])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{URL: ps.url()})
	defer c.Disconnect()

	var count atomic.Int32
	unsub := c.OnMessage(func(domain.Message) { count.Add(1) })

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)

	frame := []byte(`{"event":"new_message","data":{"id":1,"sender_id":7,"message":"uno"}}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	waitFor(t, func() bool { return count.Load() == 1 }, "first message not delivered")

	unsub()

	frame = []byte(`{"event":"new_message","data":{"id":2,"sender_id":7,"message":"dos"}}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), count.Load())
}

func TestSendMessageAndTypingFrames(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{URL: ps.url()})
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)

	require.NoError(t, c.SendMessage("a1b2c3", "buenas"))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"send_message","data":{"receiver_id":"a1b2c3","message":"buenas"}}`, string(data))

	require.NoError(t, c.SendTyping("a1b2c3", true))
	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"typing","data":{"receiver_id":"a1b2c3","is_typing":true}}`, string(data))
}

func TestSendWithoutConnectionFails(t *testing.T) {
	c := newTestClient(Config{URL: "ws://127.0.0.1:1"})
	require.ErrorIs(t, c.SendMessage("a1b2c3", "nope"), ErrNotConnected)
	require.ErrorIs(t, c.SendTyping("a1b2c3", true), ErrNotConnected)
}

func TestReconnectIsBoundedWithBackoff(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{
		URL:                  ps.url(),
		MaxReconnectAttempts: 2,
		ReconnectBaseDelay:   2 * time.Millisecond,
		ReconnectMaxDelay:    10 * time.Millisecond,
	})
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)

	// Further upgrades fail, so the dropped connection burns through every
	// allowed retry and then gives up.
	ps.reject.Store(true)
	conn.Close()

	waitFor(t, func() bool { return ps.upgrades.Load() == 3 }, "expected 2 retries after the initial connect")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(3), ps.upgrades.Load())
	require.False(t, c.IsLive())

	// A manual connect starts over.
	ps.reject.Store(false)
	require.NoError(t, c.Connect(context.Background()))
	require.True(t, c.IsLive())
}

func TestReconnectResumesAfterDrop(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{
		URL:                ps.url(),
		ReconnectBaseDelay: 2 * time.Millisecond,
	})
	defer c.Disconnect()

	var transitions []bool
	var mu sync.Mutex
	c.OnConnectionStatus(func(connected bool) {
		mu.Lock()
		transitions = append(transitions, connected)
		mu.Unlock()
	})

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)
	conn.Close()

	ps.waitConn(t, 2)
	waitFor(t, c.IsLive, "client never reconnected")

	mu.Lock()
	defer mu.Unlock()
	// connected, dropped, reconnected
	require.GreaterOrEqual(t, len(transitions), 3)
	require.True(t, transitions[0])
	require.False(t, transitions[1])
	require.True(t, transitions[len(transitions)-1])
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{
		URL:                ps.url(),
		ReconnectBaseDelay: 2 * time.Millisecond,
	})

	require.NoError(t, c.Connect(context.Background()))
	ps.waitConn(t, 1)

	c.Disconnect()
	require.False(t, c.IsLive())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), ps.upgrades.Load())
}

func TestServerDirectedDisconnectSuppressesReconnect(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(Config{
		URL:                ps.url(),
		ReconnectBaseDelay: 2 * time.Millisecond,
	})
	defer c.Disconnect()

	require.NoError(t, c.Connect(context.Background()))
	conn := ps.waitConn(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"disconnect"}`)))

	waitFor(t, func() bool { return !c.IsLive() }, "client did not honor server disconnect")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), ps.upgrades.Load())
}
