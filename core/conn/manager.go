package conn

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fmsync/logger"
	"fmsync/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventHandler receives server-pushed invalidation events: an entity that
// changed server-side and should be re-fetched.
type EventHandler func(itemType model.ItemType, itemID string)

// helloMessage is the first frame the server sends after the handshake.
type helloMessage struct {
	Type          string `json:"type"`
	ServerVersion string `json:"serverVersion"`
}

// eventMessage is a server-pushed catalog event.
type eventMessage struct {
	Type     string         `json:"type"`
	ItemType model.ItemType `json:"itemType,omitempty"`
	ItemID   string         `json:"itemId,omitempty"`
}

// Manager owns the long-lived websocket event connection. It exposes
// Connect/Disconnect commands and a reactive ConnectionState stream; the
// decision of when to call them belongs to the orchestrator.
type Manager struct {
	url      string
	deviceID string
	token    func() string
	onEvent  EventHandler

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current model.ConnectionState
	subs    []chan model.ConnectionState
}

// NewManager creates a connection manager. deviceID identifies this client
// instance to the server; onEvent may be nil.
func NewManager(wsURL, deviceID string, token func() string, onEvent EventHandler) *Manager {
	return &Manager{
		url:      wsURL,
		deviceID: deviceID,
		token:    token,
		onEvent:  onEvent,
		current:  model.ConnectionState{Kind: model.ConnDisconnected},
	}
}

// Connect starts the connection loop. Safe to call repeatedly; a running
// loop is left alone.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Disconnect stops the connection loop and waits for it to wind down.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.setState(model.ConnectionState{Kind: model.ConnDisconnected})
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe returns a channel of connection state changes and a cancel
// function. The channel holds the latest state only; slow readers miss
// intermediate transitions, never the newest one.
func (m *Manager) Subscribe() (<-chan model.ConnectionState, func()) {
	ch := make(chan model.ConnectionState, 1)

	m.mu.Lock()
	m.subs = append(m.subs, ch)
	ch <- m.current
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.clearRunning(done)

	for ctx.Err() == nil {
		m.setState(model.ConnectionState{Kind: model.ConnConnecting})

		ws, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setState(model.ConnectionState{Kind: model.ConnError, Message: err.Error()})
			return
		}

		m.pump(ctx, ws)
		ws.Close()

		if ctx.Err() == nil {
			// Connection dropped; go around and redial.
			m.setState(model.ConnectionState{Kind: model.ConnError, Message: "connection lost"})
		}
	}
}

// clearRunning releases the loop slot when run exits on its own, so a
// later Connect starts a fresh loop instead of silently no-opping. The
// done check keeps an old loop from clobbering the slot of a newer one
// started after a Disconnect.
func (m *Manager) clearRunning(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done == done {
		if m.cancel != nil {
			m.cancel()
		}
		m.cancel = nil
		m.done = nil
	}
}

// dial connects with exponential backoff until it succeeds or ctx ends.
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	operation := func() (*websocket.Conn, error) {
		header := http.Header{}
		header.Set("X-Device-ID", m.deviceID)
		if m.token != nil {
			if token := m.token(); token != "" {
				header.Set("Authorization", "Bearer "+token)
			}
		}

		ws, _, err := websocket.DefaultDialer.DialContext(ctx, m.url, header)
		if err != nil {
			logger.Debug("Event stream dial failed", logger.ErrorField(err))
			return nil, err
		}
		return ws, nil
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(backoff.NewExponentialBackOff()))
}

// pump reads the hello frame, publishes Connected, then forwards events
// until the connection breaks or ctx ends.
func (m *Manager) pump(ctx context.Context, ws *websocket.Conn) {
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Keepalive pings; the pump exits when reads start failing.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Close the socket when ctx ends so the blocking read returns.
	go func() {
		<-pingCtx.Done()
		ws.Close()
	}()

	var hello helloMessage
	if err := ws.ReadJSON(&hello); err != nil {
		logger.Warn("Event stream closed before hello", logger.ErrorField(err))
		return
	}
	ws.SetReadDeadline(time.Now().Add(pongWait))

	m.setState(model.ConnectionState{
		Kind:          model.ConnConnected,
		DeviceID:      m.deviceID,
		ServerVersion: hello.ServerVersion,
	})
	logger.Info("Event stream connected",
		logger.String("serverVersion", hello.ServerVersion),
		logger.String("deviceId", m.deviceID))

	for {
		var event eventMessage
		if err := ws.ReadJSON(&event); err != nil {
			if ctx.Err() == nil {
				logger.Warn("Event stream read failed", logger.ErrorField(err))
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		if event.Type == "invalidate" && m.onEvent != nil && event.ItemID != "" {
			m.onEvent(event.ItemType, event.ItemID)
		}
	}
}

func (m *Manager) setState(state model.ConnectionState) {
	m.mu.Lock()
	m.current = state
	subs := make([]chan model.ConnectionState, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, ch := range subs {
		// Latest-wins: drop the stale value if the reader hasn't caught up.
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
