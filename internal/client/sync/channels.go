package sync

import (
	"context"
	gosync "sync"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/repositories/cursors"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/logging"
)

// Channels coordinates the channel collection hosted on the local account.
// Contact channels are handled by the card coordinator's cascade; the fold
// itself is shared.
type Channels struct {
	api    ChannelAPI
	store  *store.Store
	log    logging.Logger
	engine *Engine

	mu       gosync.RWMutex
	arena    *channelArena
	onUpdate func()
}

// NewChannels creates the hosted-channel coordinator. applied seeds the
// engine from the persisted cursor; call Load before requesting revisions.
func NewChannels(ctx context.Context, api ChannelAPI, st *store.Store, applied int64, log logging.Logger) *Channels {
	c := &Channels{
		api:   api,
		store: st,
		log:   log,
		arena: newChannelArena(),
	}
	c.engine = NewEngine(ctx, "channels", applied, c.pass, log)
	return c
}

// Load warms the in-memory replica from the store.
func (c *Channels) Load(ctx context.Context) error {
	items, err := c.store.Channels.GetByCard(ctx, "")
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range items {
		item := items[i]
		c.arena.items[item.ChannelID] = &item
	}
	return nil
}

// SetOnUpdate registers the snapshot-published callback. Must be set before
// the first revision request.
func (c *Channels) SetOnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// RequestRevision points the coordinator at a new channel collection
// revision.
func (c *Channels) RequestRevision(revision int64) {
	c.engine.RequestRevision(revision)
}

// Nudge forces a pass at the current target, pulling in the effect of a
// local mutation promptly.
func (c *Channels) Nudge() {
	c.engine.Nudge()
}

// Cursor exposes the engine watermarks.
func (c *Channels) Cursor() Cursor {
	return c.engine.Cursor()
}

// Wait blocks until the engine drains. Teardown and tests only.
func (c *Channels) Wait() {
	c.engine.Wait()
}

// Snapshot returns value copies of the hosted channels ordered by channel
// id.
func (c *Channels) Snapshot() []models.ChannelItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arena.list()
}

// Channel returns a value copy of one hosted channel.
func (c *Channels) Channel(channelID string) (models.ChannelItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arena.get(channelID)
}

// SetReadRevision moves the read marker of a hosted channel.
func (c *Channels) SetReadRevision(ctx context.Context, channelID string, revision int64) error {
	if err := c.store.Channels.SetReadRevision(ctx, "", channelID, revision); err != nil {
		return err
	}
	c.withArena(func(a *channelArena) { a.setReadRevision(channelID, revision) })
	c.publish()
	return nil
}

// SetSyncRevision records how far a conversation pass has folded a hosted
// channel's topics.
func (c *Channels) SetSyncRevision(ctx context.Context, channelID string, revision int64) error {
	if err := c.store.Channels.SetSyncRevision(ctx, "", channelID, revision); err != nil {
		return err
	}
	c.withArena(func(a *channelArena) { a.setSyncRevision(channelID, revision) })
	return nil
}

// SetBlocked hides or unhides a hosted channel locally.
func (c *Channels) SetBlocked(ctx context.Context, channelID string, blocked bool) error {
	if err := c.store.Channels.SetBlocked(ctx, "", channelID, blocked); err != nil {
		return err
	}
	c.withArena(func(a *channelArena) { a.setBlocked(channelID, blocked) })
	c.publish()
	return nil
}

func (c *Channels) pass(ctx context.Context, target int64) error {
	deltas, err := c.api.GetChannelDeltas(ctx, c.engine.Applied())
	if err != nil {
		return err
	}
	f := &channelFolder{
		cardID:  "",
		store:   c.store,
		sink:    (*hostedChannelSink)(c),
		detail:  c.api.GetChannelDetail,
		summary: c.api.GetChannelSummary,
	}
	if err := f.fold(ctx, deltas); err != nil {
		return err
	}
	if err := c.store.Cursors.SetRevision(ctx, cursors.KeyChannelRevision, target); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Channels) withArena(fn func(a *channelArena)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.arena)
}

func (c *Channels) publish() {
	c.mu.RLock()
	fn := c.onUpdate
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// hostedChannelSink routes folder mutations into the hosted arena under the
// coordinator lock.
type hostedChannelSink Channels

func (s *hostedChannelSink) get(channelID string) (models.ChannelItem, bool) {
	return (*Channels)(s).Channel(channelID)
}

func (s *hostedChannelSink) upsert(item *models.ChannelItem) {
	(*Channels)(s).withArena(func(a *channelArena) { a.upsert(item) })
}

func (s *hostedChannelSink) setDetail(channelID string, detail *models.ChannelDetail, revision int64) {
	(*Channels)(s).withArena(func(a *channelArena) { a.setDetail(channelID, detail, revision) })
}

func (s *hostedChannelSink) setSummary(channelID string, summary *models.ChannelSummary, revision int64) {
	(*Channels)(s).withArena(func(a *channelArena) { a.setSummary(channelID, summary, revision) })
}

func (s *hostedChannelSink) setRevision(channelID string, revision int64) {
	(*Channels)(s).withArena(func(a *channelArena) { a.setRevision(channelID, revision) })
}

func (s *hostedChannelSink) remove(channelID string) {
	(*Channels)(s).withArena(func(a *channelArena) { a.remove(channelID) })
}
