// Package notify maintains the websocket through which the home node pushes
// revision updates.
package notify

import (
	"context"
	gosync "sync"
	"time"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/gorilla/websocket"
)

// Status is the connection state of the bridge.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Bridge connects to the home node's status websocket, announces the session
// with its first frame and delivers every inbound revision vector to the
// registered handler. It reconnects forever with a linearly growing delay;
// missed pushes are harmless because each delivered vector carries absolute
// revisions.
type Bridge struct {
	url    string
	token  string
	log    logging.Logger
	dialer *websocket.Dialer

	mu         gosync.Mutex
	status     Status
	onRevision func(models.Revision)
	onStatus   func(Status)
	cancel     context.CancelFunc
	wg         gosync.WaitGroup
}

// New creates a bridge for the given session. server is the bare host of the
// home node.
func New(server, token string, insecure bool, log logging.Logger) *Bridge {
	scheme := "wss"
	if insecure {
		scheme = "ws"
	}
	return &Bridge{
		url:    scheme + "://" + server + "/status",
		token:  token,
		log:    log,
		dialer: websocket.DefaultDialer,
		status: StatusDisconnected,
	}
}

// OnRevision registers the handler for inbound revision vectors. Must be set
// before Start.
func (b *Bridge) OnRevision(fn func(models.Revision)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRevision = fn
}

// OnStatus registers the handler for connection state changes. Must be set
// before Start.
func (b *Bridge) OnStatus(fn func(Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStatus = fn
}

// Status returns the current connection state.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Start launches the connect loop. It returns immediately; use Stop to tear
// the bridge down.
func (b *Bridge) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	b.wg.Add(1)
	go b.run(runCtx)
}

// Stop closes the connection and waits for the loop to exit.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

func (b *Bridge) run(ctx context.Context) {
	defer b.wg.Done()
	defer b.setStatus(StatusDisconnected)

	var delay time.Duration
	for {
		if ctx.Err() != nil {
			return
		}
		b.setStatus(StatusConnecting)
		if err := b.session(ctx); err != nil {
			b.log.Warn(ctx, "status socket lost", "error", err)
		}
		b.setStatus(StatusDisconnected)

		delay += time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one websocket connection to completion.
func (b *Bridge) session(ctx context.Context) error {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadJSON when the session ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// The first frame announces the session; the server answers with the
	// current revision vector and pushes a fresh one on every change.
	announce := struct {
		AppToken string `json:"appToken"`
	}{b.token}
	if err := conn.WriteJSON(&announce); err != nil {
		return err
	}
	b.setStatus(StatusConnected)

	for {
		var rev models.Revision
		if err := conn.ReadJSON(&rev); err != nil {
			return err
		}
		b.deliver(rev)
	}
}

func (b *Bridge) deliver(rev models.Revision) {
	b.mu.Lock()
	fn := b.onRevision
	b.mu.Unlock()
	if fn != nil {
		fn(rev)
	}
}

func (b *Bridge) setStatus(status Status) {
	b.mu.Lock()
	if b.status == status {
		b.mu.Unlock()
		return
	}
	b.status = status
	fn := b.onStatus
	b.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}
