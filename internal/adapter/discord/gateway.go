package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	"github.com/pscheid92/shiritori/internal/platform/correlation"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
)

const (
	gatewayVersion = "10"
	writeTimeout   = 10 * time.Second
	closeTimeout   = time.Second
)

// ErrSessionEnded is returned by Run when the server ends the session
// (close frame, reconnect request or invalidated session). Resuming is not
// supported, so the caller treats this as the end of the process.
var ErrSessionEnded = errors.New("gateway session ended")

type State int32

const (
	StateConnecting State = iota
	StateIdentifying
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdentifying:
		return "identifying"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Dispatcher receives decoded dispatch events. Each call runs on its own goroutine.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventType string, data json.RawMessage)
}

// GatewayLocator resolves the WebSocket URL to connect to.
type GatewayLocator interface {
	GatewayURL(ctx context.Context) (string, error)
}

type SessionConfig struct {
	Token   string
	Intents int
	Device  string
}

// Session owns one gateway connection from lookup to close.
type Session struct {
	cfg        SessionConfig
	locator    GatewayLocator
	dispatcher Dispatcher
	dialer     *websocket.Dialer
	clock      clockwork.Clock
	metrics    *metrics.GatewayMetrics
	id         string

	state atomic.Int32

	writeMu sync.Mutex
	conn    *websocket.Conn

	hbMu       sync.Mutex
	hbInterval time.Duration
	hbCancel   context.CancelFunc
	hbDone     chan struct{}
	hbGen      int

	dispatches sync.WaitGroup
}

func NewSession(cfg SessionConfig, locator GatewayLocator, dispatcher Dispatcher, clock clockwork.Clock, m *metrics.GatewayMetrics) *Session {
	if cfg.Device == "" {
		cfg.Device = "shiritori"
	}
	s := &Session{
		cfg:        cfg,
		locator:    locator,
		dispatcher: dispatcher,
		dialer:     websocket.DefaultDialer,
		clock:      clock,
		metrics:    m,
		id:         uuid.NewString(),
	}
	s.setState(StateConnecting)
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) ID() string {
	return s.id
}

// HeartbeatInterval returns the interval of the running heartbeat, or 0.
func (s *Session) HeartbeatInterval() time.Duration {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	return s.hbInterval
}

// Run connects, identifies and processes frames until the connection ends.
// It returns nil when ctx is cancelled, and an error for every other way the
// session can end. Run must be called at most once.
func (s *Session) Run(ctx context.Context) error {
	ctx = correlation.WithSession(ctx, s.id)
	defer s.setState(StateClosed)

	gatewayURL, err := s.locator.GatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve gateway endpoint: %w", err)
	}

	endpoint, err := withGatewayParams(gatewayURL)
	if err != nil {
		return apperrors.ParseError("invalid gateway url", err).WithField("url", gatewayURL)
	}

	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return apperrors.TransportError("failed to connect to gateway", err)
	}
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	slog.InfoContext(ctx, "Gateway connected", "url", endpoint)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.stopHeartbeat()
		_ = conn.Close()
	}()

	// A blocked read only returns once the socket is closed.
	stop := context.AfterFunc(ctx, s.closeGracefully)
	defer stop()

	s.setState(StateIdentifying)
	if err := s.identify(); err != nil {
		return fmt.Errorf("failed to identify: %w", err)
	}

	return s.readLoop(sessionCtx)
}

// Wait blocks until every dispatched event handler has returned.
func (s *Session) Wait() {
	s.dispatches.Wait()
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				slog.InfoContext(ctx, "Gateway session stopped")
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				slog.WarnContext(ctx, "Gateway closed the connection", "code", closeErr.Code, "reason", closeErr.Text)
				return fmt.Errorf("%w: close code %d", ErrSessionEnded, closeErr.Code)
			}
			return apperrors.TransportError("gateway read failed", err)
		}

		if err := s.handleFrame(ctx, data); err != nil {
			return err
		}
		s.state.CompareAndSwap(int32(StateIdentifying), int32(StateReady))
		if s.metrics != nil {
			s.metrics.SessionState.Set(float64(s.State()))
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		slog.WarnContext(ctx, "Skipping undecodable gateway frame", "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.FramesReceived.WithLabelValues(strconv.Itoa(f.Op)).Inc()
	}
	slog.DebugContext(ctx, "Gateway frame", "op", f.Op, "t", f.T)

	switch f.Op {
	case opHello:
		var hello helloData
		if err := json.Unmarshal(f.D, &hello); err != nil {
			return apperrors.ParseError("malformed hello frame", err)
		}
		if hello.HeartbeatInterval <= 0 {
			return apperrors.ParseError("hello frame without heartbeat interval", nil).
				WithField("heartbeat_interval", hello.HeartbeatInterval)
		}
		s.startHeartbeat(ctx, time.Duration(hello.HeartbeatInterval)*time.Millisecond)

	case opDispatch:
		s.dispatch(ctx, f.T, f.D)

	case opHeartbeat:
		if err := s.sendHeartbeat(); err != nil {
			return apperrors.TransportError("failed to answer heartbeat request", err)
		}

	case opHeartbeatAck:
		if s.metrics != nil {
			s.metrics.HeartbeatAcks.Inc()
		}

	case opReconnect:
		return fmt.Errorf("%w: server requested reconnect", ErrSessionEnded)

	case opInvalidSession:
		return fmt.Errorf("%w: session invalidated", ErrSessionEnded)

	default:
		slog.DebugContext(ctx, "Ignoring gateway opcode", "op", f.Op)
	}
	return nil
}

func (s *Session) dispatch(ctx context.Context, eventType string, data json.RawMessage) {
	if eventType == "" {
		slog.WarnContext(ctx, "Skipping dispatch without event type")
		return
	}
	if s.metrics != nil {
		s.metrics.Dispatches.WithLabelValues(eventType).Inc()
	}

	eventCtx := correlation.WithID(context.WithoutCancel(ctx), correlation.NewID())

	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(eventCtx, "Event handler panicked", "event", eventType, "panic", r)
			}
		}()
		s.dispatcher.Dispatch(eventCtx, eventType, data)
	}()
}

func (s *Session) identify() error {
	payload, err := json.Marshal(identifyFrame{
		Op: opIdentify,
		D: identifyData{
			Token:   s.cfg.Token,
			Intents: s.cfg.Intents,
			Properties: identifyProperties{
				OS:      runtime.GOOS,
				Browser: s.cfg.Device,
				Device:  s.cfg.Device,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode identify frame: %w", err)
	}
	if err := s.write(payload); err != nil {
		return apperrors.TransportError("failed to send identify frame", err)
	}
	return nil
}

// startHeartbeat replaces any running heartbeat task. The previous task has
// fully stopped before the new one starts.
func (s *Session) startHeartbeat(ctx context.Context, interval time.Duration) {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()

	if s.hbCancel != nil {
		s.hbCancel()
		<-s.hbDone
		slog.InfoContext(ctx, "Replacing running heartbeat", "old_interval", s.hbInterval, "new_interval", interval)
	}

	hbCtx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})

	s.hbCancel = cancel
	s.hbDone = done
	s.hbInterval = interval
	s.hbGen++

	go func() {
		defer close(done)
		defer ticker.Stop()
		s.heartbeatLoop(hbCtx, ticker)
	}()

	slog.InfoContext(ctx, "Heartbeat started", "interval", interval)
}

func (s *Session) heartbeatLoop(ctx context.Context, ticker clockwork.Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.sendHeartbeat(); err != nil {
				slog.WarnContext(ctx, "Failed to send heartbeat", "error", err)
				return
			}
		}
	}
}

func (s *Session) stopHeartbeat() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()

	if s.hbCancel != nil {
		s.hbCancel()
		<-s.hbDone
		s.hbCancel = nil
		s.hbDone = nil
		s.hbInterval = 0
	}
}

func (s *Session) heartbeatGeneration() int {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	return s.hbGen
}

func (s *Session) sendHeartbeat() error {
	if err := s.write(heartbeatFrame); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.HeartbeatsSent.Inc()
	}
	return nil
}

// write serializes every outbound text frame on the socket.
func (s *Session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (s *Session) closeGracefully() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	_ = s.conn.Close()
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
	if s.metrics != nil {
		s.metrics.SessionState.Set(float64(state))
	}
}

func withGatewayParams(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	q := u.Query()
	if q.Get("v") == "" {
		q.Set("v", gatewayVersion)
	}
	if q.Get("encoding") == "" {
		q.Set("encoding", "json")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
