package sync

import (
	"context"
	"sync"

	"github.com/driftsync/driftsync/internal/logging"
)

type engineState int

const (
	engineIdle engineState = iota
	engineRunning
)

// PassFunc performs one sync pass up to the given target revision. It must
// either fully fold the delta range and persist the new cursor, or return an
// error leaving the previous cursor intact.
type PassFunc func(ctx context.Context, target int64) error

// Engine serializes sync passes for one collection. At most one pass is in
// flight at any time; targets requested meanwhile land in the pending
// register and only the latest survives.
type Engine struct {
	name string
	log  logging.Logger
	pass PassFunc
	ctx  context.Context

	mu     sync.Mutex
	state  engineState
	cursor Cursor
	forced bool

	wg sync.WaitGroup
}

// NewEngine creates an engine for one collection. ctx scopes every pass to
// the session; cancelling it stops the run loop after the current pass.
// applied seeds the cursor from persisted state.
func NewEngine(ctx context.Context, name string, applied int64, pass PassFunc, log logging.Logger) *Engine {
	return &Engine{
		name:   name,
		log:    log.With("collection", name),
		pass:   pass,
		ctx:    ctx,
		cursor: Cursor{applied: applied, target: applied},
	}
}

// Cursor returns the current watermark pair.
func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Applied returns the applied watermark.
func (e *Engine) Applied() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor.applied
}

// RequestRevision records a new target and starts a run loop unless one is
// already draining. Safe for concurrent use; non-blocking; idempotent for a
// target already applied.
func (e *Engine) RequestRevision(target int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor.target = target
	e.kick()
}

// Nudge re-runs a pass at the current target even when the cursor shows no
// gap. Used by explicit resyncs and by local mutations that want their
// effect pulled in promptly.
func (e *Engine) Nudge() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forced = true
	e.kick()
}

// kick starts the run loop if there is work and nothing is draining.
// Caller must hold e.mu.
func (e *Engine) kick() {
	if e.state == engineRunning {
		return
	}
	if !e.cursor.NeedsSync() && !e.forced {
		return
	}
	e.state = engineRunning
	e.wg.Add(1)
	go e.run()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if e.ctx.Err() != nil {
			e.state = engineIdle
			e.mu.Unlock()
			return
		}
		target := e.cursor.target
		forced := e.forced
		e.forced = false
		if target == e.cursor.applied && !forced {
			e.state = engineIdle
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		if err := e.pass(e.ctx, target); err != nil {
			// Leave applied untouched: the pending-target comparison
			// re-triggers the same delta on the next request.
			e.log.Error(e.ctx, "sync pass failed", "target", target, "error", err)
			e.mu.Lock()
			e.state = engineIdle
			e.mu.Unlock()
			return
		}

		e.mu.Lock()
		e.cursor.applied = target
		e.mu.Unlock()
		e.log.Debug(e.ctx, "sync pass complete", "applied", target)
	}
}

// Wait blocks until the current run loop (if any) exits. Intended for
// teardown and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}
