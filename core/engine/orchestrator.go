package engine

import (
	"context"
	"sync"

	"fmsync/logger"
	"fmsync/model"
)

// Transport is the connection command surface the orchestrator drives.
// Both commands must be idempotent.
type Transport interface {
	Connect()
	Disconnect()
}

// CatchUpFunc runs one reconciliation pass after a reconnect and reports
// whether pending work was found.
type CatchUpFunc func(ctx context.Context) bool

// Orchestrator decides when the long-lived event connection should be open
// and when a catch-up pass must run. It performs no I/O itself: it combines
// independently-updated readiness signals into connect/disconnect commands,
// and latches disconnections so that exactly one catch-up runs per
// reconnect transition.
type Orchestrator struct {
	transport Transport
	catchUp   CatchUpFunc

	// cmdMu keeps each transport command in the order of the decision
	// that produced it; mu alone guards the signal fields.
	cmdMu sync.Mutex

	mu               sync.Mutex
	authenticated    bool
	networkAvailable bool
	foreground       bool
	keptAlive        bool
	playing          bool

	wasDisconnected bool
	connected       bool
}

// NewOrchestrator creates an orchestrator. The wasDisconnected latch is
// armed by the transport's first Disconnected emission, so a fresh process
// still catches up on its first successful connect.
func NewOrchestrator(transport Transport, catchUp CatchUpFunc) *Orchestrator {
	return &Orchestrator{
		transport: transport,
		catchUp:   catchUp,
	}
}

// SetAuthenticated updates the session signal.
func (o *Orchestrator) SetAuthenticated(v bool) { o.setSignal(&o.authenticated, v) }

// SetNetworkAvailable updates the network signal.
func (o *Orchestrator) SetNetworkAvailable(v bool) { o.setSignal(&o.networkAvailable, v) }

// SetForeground updates the app-in-foreground signal.
func (o *Orchestrator) SetForeground(v bool) { o.setSignal(&o.foreground, v) }

// SetKeptAlive updates the kept-alive-externally signal.
func (o *Orchestrator) SetKeptAlive(v bool) { o.setSignal(&o.keptAlive, v) }

// SetPlaying updates the playback signal.
func (o *Orchestrator) SetPlaying(v bool) { o.setSignal(&o.playing, v) }

func (o *Orchestrator) setSignal(field *bool, v bool) {
	o.cmdMu.Lock()
	defer o.cmdMu.Unlock()

	o.mu.Lock()
	*field = v
	should := o.shouldConnectLocked()
	o.mu.Unlock()

	if should {
		o.transport.Connect()
	} else {
		o.transport.Disconnect()
	}
}

// ShouldConnect reports the current connect decision.
func (o *Orchestrator) ShouldConnect() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shouldConnectLocked()
}

func (o *Orchestrator) shouldConnectLocked() bool {
	return o.authenticated && o.networkAvailable &&
		(o.foreground || o.playing || o.keptAlive)
}

// Run consumes the connection state stream until ctx ends.
func (o *Orchestrator) Run(ctx context.Context, states <-chan model.ConnectionState) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			o.HandleConnectionState(ctx, state)
		}
	}
}

// HandleConnectionState applies one transport state emission. Disconnected
// and Error set the latch; a transition into Connected with the latch set
// fires catch-up exactly once and clears it. Connecting never fires, and
// repeated Connected emissions without an intervening disconnect fire at
// most once.
func (o *Orchestrator) HandleConnectionState(ctx context.Context, state model.ConnectionState) {
	var fire bool

	o.mu.Lock()
	switch state.Kind {
	case model.ConnDisconnected, model.ConnError:
		o.wasDisconnected = true
		o.connected = false
	case model.ConnConnecting:
		o.connected = false
	case model.ConnConnected:
		if !o.connected && o.wasDisconnected {
			fire = true
			o.wasDisconnected = false
		}
		o.connected = true
	}
	o.mu.Unlock()

	if fire && o.catchUp != nil {
		logger.Info("Reconnected after disconnect, running catch-up")
		if o.catchUp(ctx) {
			logger.Info("Catch-up found pending work")
		}
	}
}
