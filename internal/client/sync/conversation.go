package sync

import (
	"context"
	"sort"
	gosync "sync"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/driftsync/driftsync/internal/logging"
)

// ChannelMarks routes a conversation's watermark writes back to the
// coordinator owning the channel. An empty card id addresses the hosted
// collection.
type ChannelMarks interface {
	Channel(cardID, channelID string) (models.ChannelItem, bool)
	SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error
	SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error
}

// Conversation coordinates the topic collection of the one focused channel.
// Focusing a different channel bumps the view token; passes still in flight
// for the old focus notice the stale token and quietly drop their results.
type Conversation struct {
	ctx   context.Context
	store *store.Store
	marks ChannelMarks
	log   logging.Logger

	mu        gosync.RWMutex
	token     uint64
	cardID    string
	channelID string
	source    TopicSource
	engine    *Engine
	cancel    context.CancelFunc
	topics    map[string]*models.TopicItem
	onUpdate  func()
}

// NewConversation creates an unfocused conversation coordinator. ctx scopes
// it to the session.
func NewConversation(ctx context.Context, st *store.Store, marks ChannelMarks, log logging.Logger) *Conversation {
	return &Conversation{
		ctx:   ctx,
		store: st,
		marks: marks,
		log:   log,
	}
}

// SetOnUpdate registers the snapshot-published callback.
func (c *Conversation) SetOnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Focus points the coordinator at one channel, warming the topic arena from
// the store and kicking a pass toward the channel's current topic revision.
// Any previous focus is discarded.
func (c *Conversation) Focus(cardID, channelID string, source TopicSource) error {
	channel, ok := c.marks.Channel(cardID, channelID)
	if !ok {
		return common.ErrNotFound
	}
	items, err := c.store.Topics.GetByChannel(c.ctx, cardID, channelID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.dropLocked()
	c.token++
	token := c.token
	c.cardID = cardID
	c.channelID = channelID
	c.source = source
	c.topics = make(map[string]*models.TopicItem, len(items))
	for i := range items {
		item := items[i]
		c.topics[item.TopicID] = &item
	}
	engCtx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.engine = NewEngine(engCtx, "topics", channel.SyncRevision, c.passFunc(token), c.log)
	engine := c.engine
	c.mu.Unlock()

	c.publish()
	engine.RequestRevision(channel.TopicRevision)
	return nil
}

// Blur drops the focus. In-flight work for the old focus is cancelled and
// its results discarded.
func (c *Conversation) Blur() {
	c.mu.Lock()
	c.dropLocked()
	c.token++
	c.mu.Unlock()
	c.publish()
}

// dropLocked clears the focus fields. Caller must hold c.mu.
func (c *Conversation) dropLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.engine = nil
	c.source = nil
	c.cardID = ""
	c.channelID = ""
	c.topics = nil
}

// Focused reports the channel currently in focus.
func (c *Conversation) Focused() (cardID, channelID string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cardID, c.channelID, c.engine != nil
}

// Poke re-reads the focused channel's topic revision and requests it.
// The session calls this whenever the owning coordinator publishes.
func (c *Conversation) Poke() {
	c.mu.RLock()
	engine := c.engine
	cardID, channelID := c.cardID, c.channelID
	c.mu.RUnlock()
	if engine == nil {
		return
	}
	channel, ok := c.marks.Channel(cardID, channelID)
	if !ok {
		return
	}
	engine.RequestRevision(channel.TopicRevision)
}

// Nudge forces a pass at the current target.
func (c *Conversation) Nudge() {
	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()
	if engine != nil {
		engine.Nudge()
	}
}

// Wait blocks until the focused engine drains. Teardown and tests only.
func (c *Conversation) Wait() {
	c.mu.RLock()
	engine := c.engine
	c.mu.RUnlock()
	if engine != nil {
		engine.Wait()
	}
}

// Snapshot returns value copies of the focused topics ordered by creation
// time.
func (c *Conversation) Snapshot() []models.TopicItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.TopicItem, 0, len(c.topics))
	for _, item := range c.topics {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ac, bc := int64(0), int64(0)
		if a.Detail != nil {
			ac = a.Detail.Created
		}
		if b.Detail != nil {
			bc = b.Detail.Created
		}
		if ac != bc {
			return ac < bc
		}
		return a.TopicID < b.TopicID
	})
	return out
}

// MarkRead moves the focused channel's read marker up to its current topic
// revision.
func (c *Conversation) MarkRead(ctx context.Context) error {
	c.mu.RLock()
	cardID, channelID := c.cardID, c.channelID
	focused := c.engine != nil
	c.mu.RUnlock()
	if !focused {
		return nil
	}
	channel, ok := c.marks.Channel(cardID, channelID)
	if !ok {
		return nil
	}
	if channel.ReadRevision >= channel.TopicRevision {
		return nil
	}
	return c.marks.SetReadRevision(ctx, cardID, channelID, channel.TopicRevision)
}

// SetTopicBlocked hides or unhides one topic of the focused conversation.
// Blocking is a local moderation flag; the topic keeps syncing.
func (c *Conversation) SetTopicBlocked(ctx context.Context, topicID string, blocked bool) error {
	c.mu.RLock()
	cardID, channelID := c.cardID, c.channelID
	token := c.token
	focused := c.engine != nil
	c.mu.RUnlock()
	if !focused {
		return common.ErrNotFound
	}
	if err := c.store.Topics.SetBlocked(ctx, cardID, channelID, topicID, blocked); err != nil {
		return err
	}
	c.mu.Lock()
	if token == c.token {
		if cur, ok := c.topics[topicID]; ok {
			cur.Blocked = blocked
		}
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// passFunc builds the pass closure for one focus generation.
func (c *Conversation) passFunc(token uint64) PassFunc {
	return func(ctx context.Context, target int64) error {
		c.mu.RLock()
		stale := token != c.token
		source := c.source
		cardID, channelID := c.cardID, c.channelID
		engine := c.engine
		c.mu.RUnlock()
		if stale || source == nil {
			return nil
		}

		batch, err := source.GetTopics(ctx, engine.Applied())
		if err != nil {
			return err
		}
		for i := range batch.Topics {
			rec := &batch.Topics[i]
			if err := c.foldTopic(ctx, token, source, cardID, channelID, rec); err != nil {
				return err
			}
		}

		if c.stale(token) {
			return nil
		}
		if err := c.marks.SetSyncRevision(ctx, cardID, channelID, batch.Revision); err != nil {
			return err
		}
		c.publish()
		return nil
	}
}

func (c *Conversation) foldTopic(ctx context.Context, token uint64, source TopicSource, cardID, channelID string, rec *models.TopicDelta) error {
	if rec.Data == nil {
		if err := c.store.Topics.Delete(ctx, cardID, channelID, rec.ID); err != nil {
			return err
		}
		c.removeTopic(token, rec.ID)
		return nil
	}
	data := rec.Data

	if data.TopicDetail == nil {
		cur, ok := c.topic(token, rec.ID)
		if ok && cur.DetailRevision == data.DetailRevision {
			// Only the collection revision moved.
			cur.Revision = rec.Revision
			if err := c.store.Topics.Upsert(ctx, cardID, channelID, &cur); err != nil {
				return err
			}
			c.applyTopic(token, &cur)
			return nil
		}
		full, err := source.GetTopic(ctx, rec.ID)
		if err != nil {
			return err
		}
		if full.Data == nil || full.Data.TopicDetail == nil {
			// Deleted between the range scan and the fetch.
			if err := c.store.Topics.Delete(ctx, cardID, channelID, rec.ID); err != nil {
				return err
			}
			c.removeTopic(token, rec.ID)
			return nil
		}
		data = full.Data
	}

	item := &models.TopicItem{
		TopicID:        rec.ID,
		Revision:       rec.Revision,
		DetailRevision: data.DetailRevision,
		Detail:         data.TopicDetail,
	}
	if err := c.store.Topics.Upsert(ctx, cardID, channelID, item); err != nil {
		return err
	}
	c.applyTopic(token, item)
	return nil
}

func (c *Conversation) stale(token uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return token != c.token
}

func (c *Conversation) topic(token uint64, topicID string) (models.TopicItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if token != c.token {
		return models.TopicItem{}, false
	}
	item, ok := c.topics[topicID]
	if !ok {
		return models.TopicItem{}, false
	}
	return *item, true
}

func (c *Conversation) applyTopic(token uint64, item *models.TopicItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token || c.topics == nil {
		return
	}
	next := *item
	if cur, ok := c.topics[item.TopicID]; ok {
		next.Blocked = cur.Blocked
	}
	c.topics[item.TopicID] = &next
}

func (c *Conversation) removeTopic(token uint64, topicID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		return
	}
	delete(c.topics, topicID)
}

func (c *Conversation) publish() {
	c.mu.RLock()
	fn := c.onUpdate
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
