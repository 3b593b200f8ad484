package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

const frameTimeout = 2 * time.Second

// fakeGateway plays the server side of one gateway connection.
type fakeGateway struct {
	srv        *httptest.Server
	toClient   chan string
	fromClient chan frame
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		toClient:   make(chan string, 16),
		fromClient: make(chan frame, 64),
	}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("v"))
		assert.Equal(t, "json", r.URL.Query().Get("encoding"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var f frame
				if json.Unmarshal(data, &f) == nil {
					g.fromClient <- f
				}
			}
		}()

		for {
			select {
			case msg := <-g.toClient:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) GatewayURL(context.Context) (string, error) {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http"), nil
}

func (g *fakeGateway) send(msg string) {
	g.toClient <- msg
}

func (g *fakeGateway) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-g.fromClient:
		return f
	case <-time.After(frameTimeout):
		t.Fatal("timed out waiting for client frame")
		return frame{}
	}
}

func (g *fakeGateway) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case f := <-g.fromClient:
		t.Fatalf("unexpected client frame op=%d", f.Op)
	case <-time.After(d):
	}
}

type dispatched struct {
	eventType string
	data      string
}

type recordingDispatcher struct {
	events chan dispatched
}

func (d *recordingDispatcher) Dispatch(_ context.Context, eventType string, data json.RawMessage) {
	d.events <- dispatched{eventType: eventType, data: string(data)}
}

type failingLocator struct{}

func (failingLocator) GatewayURL(context.Context) (string, error) {
	return "", errors.New("lookup failed")
}

type harness struct {
	gateway    *fakeGateway
	session    *Session
	clock      *clockwork.FakeClock
	dispatcher *recordingDispatcher
	cancel     context.CancelFunc
	done       chan error
}

func startSession(t *testing.T, m *metrics.GatewayMetrics) *harness {
	t.Helper()
	h := &harness{
		gateway:    newFakeGateway(t),
		clock:      clockwork.NewFakeClock(),
		dispatcher: &recordingDispatcher{events: make(chan dispatched, 16)},
		done:       make(chan error, 1),
	}
	h.session = NewSession(SessionConfig{Token: "secret", Intents: 34304}, h.gateway, h.dispatcher, h.clock, m)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.session.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(frameTimeout):
		}
	})

	identify := h.gateway.next(t)
	require.Equal(t, opIdentify, identify.Op)
	return h
}

func (h *harness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(frameTimeout):
		t.Fatal("session did not stop")
		return nil
	}
}

func (h *harness) hello(t *testing.T, interval time.Duration, generation int) {
	t.Helper()
	h.gateway.send(`{"op":10,"d":{"heartbeat_interval":` + itoa(interval.Milliseconds()) + `}}`)
	require.Eventually(t, func() bool {
		return h.session.heartbeatGeneration() == generation && h.session.HeartbeatInterval() == interval
	}, frameTimeout, 5*time.Millisecond)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestSession_SendsIdentify(t *testing.T) {
	g := newFakeGateway(t)
	session := NewSession(SessionConfig{Token: "secret", Intents: 34304, Device: "test-bot"}, g, &recordingDispatcher{events: make(chan dispatched, 1)}, clockwork.NewFakeClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	f := g.next(t)
	require.Equal(t, opIdentify, f.Op)

	var data identifyData
	require.NoError(t, json.Unmarshal(f.D, &data))
	assert.Equal(t, "secret", data.Token)
	assert.Equal(t, 34304, data.Intents)
	assert.Equal(t, "test-bot", data.Properties.Device)
	assert.NotEmpty(t, data.Properties.OS)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_HeartbeatsOnInterval(t *testing.T) {
	h := startSession(t, nil)
	h.hello(t, 45*time.Second, 1)

	require.NoError(t, h.clock.BlockUntilContext(context.Background(), 1))
	h.clock.Advance(45 * time.Second)

	f := h.gateway.next(t)
	assert.Equal(t, opHeartbeat, f.Op)
	assert.Equal(t, "null", string(f.D))

	h.clock.Advance(45 * time.Second)
	assert.Equal(t, opHeartbeat, h.gateway.next(t).Op)
}

func TestSession_SecondHelloReplacesHeartbeat(t *testing.T) {
	h := startSession(t, nil)
	h.hello(t, 45*time.Second, 1)
	h.hello(t, 30*time.Second, 2)

	// Only the replacement ticker is left on the clock.
	require.NoError(t, h.clock.BlockUntilContext(context.Background(), 1))

	h.clock.Advance(30 * time.Second)
	assert.Equal(t, opHeartbeat, h.gateway.next(t).Op)
	h.gateway.expectSilence(t, 100*time.Millisecond)

	h.clock.Advance(15 * time.Second)
	h.gateway.expectSilence(t, 100*time.Millisecond)
}

func TestSession_HeartbeatRequestAnsweredImmediately(t *testing.T) {
	h := startSession(t, nil)
	h.hello(t, 45*time.Second, 1)

	h.gateway.send(`{"op":1,"d":null}`)

	assert.Equal(t, opHeartbeat, h.gateway.next(t).Op)
}

func TestSession_ReadyAfterFirstFrame(t *testing.T) {
	h := startSession(t, nil)
	assert.NotEqual(t, StateReady, h.session.State())

	h.hello(t, 45*time.Second, 1)

	assert.Eventually(t, func() bool { return h.session.State() == StateReady }, frameTimeout, 5*time.Millisecond)
}

func TestSession_RoutesDispatches(t *testing.T) {
	h := startSession(t, nil)
	h.hello(t, 45*time.Second, 1)

	h.gateway.send(`{"op":0,"s":1,"t":"MESSAGE_CREATE","d":{"id":"m1","channel_id":"c1"}}`)

	select {
	case ev := <-h.dispatcher.events:
		assert.Equal(t, EventMessageCreate, ev.eventType)
		assert.JSONEq(t, `{"id":"m1","channel_id":"c1"}`, ev.data)
	case <-time.After(frameTimeout):
		t.Fatal("dispatch not delivered")
	}
}

func TestSession_ReconnectEndsSession(t *testing.T) {
	h := startSession(t, nil)
	h.gateway.send(`{"op":7,"d":null}`)

	err := h.result(t)
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestSession_InvalidSessionEndsSession(t *testing.T) {
	h := startSession(t, nil)
	h.gateway.send(`{"op":9,"d":false}`)

	assert.ErrorIs(t, h.result(t), ErrSessionEnded)
}

func TestSession_SkipsUndecodableFrames(t *testing.T) {
	h := startSession(t, nil)
	h.gateway.send(`this is not json`)
	h.gateway.send(`{"op":7,"d":null}`)

	assert.ErrorIs(t, h.result(t), ErrSessionEnded)
}

func TestSession_MalformedHelloIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"bad payload", `{"op":10,"d":"soon"}`},
		{"missing interval", `{"op":10,"d":{}}`},
		{"negative interval", `{"op":10,"d":{"heartbeat_interval":-5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startSession(t, nil)
			h.gateway.send(tt.frame)

			err := h.result(t)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.TypeParse))
		})
	}
}

func TestSession_CancelStopsCleanly(t *testing.T) {
	h := startSession(t, nil)
	h.hello(t, 45*time.Second, 1)

	h.cancel()

	require.NoError(t, h.result(t))
	assert.Equal(t, StateClosed, h.session.State())
	assert.Zero(t, h.session.HeartbeatInterval())
}

func TestSession_LookupFailure(t *testing.T) {
	session := NewSession(SessionConfig{Token: "secret"}, failingLocator{}, &recordingDispatcher{}, clockwork.NewFakeClock(), nil)

	err := session.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup failed")
}

func TestSession_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)

	h := startSession(t, m)
	h.hello(t, 45*time.Second, 1)
	h.gateway.send(`{"op":1,"d":null}`)
	h.gateway.next(t)
	h.gateway.send(`{"op":11}`)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.HeartbeatAcks) == 1
	}, frameTimeout, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeartbeatsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesReceived.WithLabelValues("10")))
}

func TestSession_WaitBlocksForHandlers(t *testing.T) {
	g := newFakeGateway(t)
	release := make(chan struct{})
	var finished sync.WaitGroup
	finished.Add(1)
	d := dispatcherFunc(func(context.Context, string, json.RawMessage) {
		<-release
		finished.Done()
	})
	session := NewSession(SessionConfig{Token: "secret"}, g, d, clockwork.NewFakeClock(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	g.next(t)

	g.send(`{"op":0,"t":"MESSAGE_CREATE","d":{}}`)
	g.send(`{"op":7}`)
	assert.ErrorIs(t, <-done, ErrSessionEnded)
	cancel()

	waited := make(chan struct{})
	go func() {
		session.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(frameTimeout):
		t.Fatal("Wait did not return")
	}
	finished.Wait()
}

type dispatcherFunc func(ctx context.Context, eventType string, data json.RawMessage)

func (f dispatcherFunc) Dispatch(ctx context.Context, eventType string, data json.RawMessage) {
	f(ctx, eventType, data)
}

func TestWithGatewayParams(t *testing.T) {
	got, err := withGatewayParams("wss://gateway.discord.gg")
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?encoding=json&v=10", got)

	got, err = withGatewayParams("wss://gateway.discord.gg/?v=9")
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg/?encoding=json&v=9", got)

	_, err = withGatewayParams("https://gateway.discord.gg")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "identifying", StateIdentifying.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
