package sync

import (
	"context"
	"sort"
	gosync "sync"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/repositories/cursors"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/logging"
)

// CardView pairs a card with the channels reached through it.
type CardView struct {
	Card     models.CardItem
	Channels []models.ChannelItem
}

type cardEntry struct {
	item     models.CardItem
	channels *channelArena
}

// Cards coordinates the contact collection: it folds card deltas from the
// home node and cascades into each connected contact's remote collections.
// A cascade failure marks only that card offsync; the rest of the batch
// keeps folding.
type Cards struct {
	api     CardAPI
	contact ContactAPI
	store   *store.Store
	log     logging.Logger
	engine  *Engine

	mu       gosync.RWMutex
	entries  map[string]*cardEntry
	resync   []string
	onUpdate func()
}

// NewCards creates the card coordinator. applied seeds the engine from the
// persisted cursor; call Load before requesting revisions.
func NewCards(ctx context.Context, api CardAPI, contact ContactAPI, st *store.Store, applied int64, log logging.Logger) *Cards {
	c := &Cards{
		api:     api,
		contact: contact,
		store:   st,
		log:     log,
		entries: make(map[string]*cardEntry),
	}
	c.engine = NewEngine(ctx, "cards", applied, c.pass, log)
	return c
}

// Load warms the in-memory replica from the store.
func (c *Cards) Load(ctx context.Context) error {
	items, err := c.store.Cards.GetAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range items {
		c.entries[items[i].CardID] = &cardEntry{item: items[i], channels: newChannelArena()}
	}
	for id, e := range c.entries {
		chans, err := c.store.Channels.GetByCard(ctx, id)
		if err != nil {
			return err
		}
		for i := range chans {
			item := chans[i]
			e.channels.items[item.ChannelID] = &item
		}
	}
	return nil
}

// SetOnUpdate registers the snapshot-published callback. Must be set before
// the first revision request.
func (c *Cards) SetOnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// RequestRevision points the coordinator at a new card collection revision.
func (c *Cards) RequestRevision(revision int64) {
	c.engine.RequestRevision(revision)
}

// Resync queues a full refetch of one card, typically to recover an offsync
// contact, and kicks the engine.
func (c *Cards) Resync(cardID string) {
	c.mu.Lock()
	c.resync = append(c.resync, cardID)
	c.mu.Unlock()
	c.engine.Nudge()
}

// Nudge forces a pass at the current target.
func (c *Cards) Nudge() {
	c.engine.Nudge()
}

// Cursor exposes the engine watermarks.
func (c *Cards) Cursor() Cursor {
	return c.engine.Cursor()
}

// Wait blocks until the engine drains. Teardown and tests only.
func (c *Cards) Wait() {
	c.engine.Wait()
}

// Snapshot returns value copies of every card with its channels, ordered by
// card id. Nested pointers are shared but never mutated in place.
func (c *Cards) Snapshot() []CardView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CardView, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, CardView{Card: e.item, Channels: e.channels.list()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Card.CardID < out[j].Card.CardID })
	return out
}

// Card returns a value copy of one card.
func (c *Cards) Card(cardID string) (models.CardItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cardID]
	if !ok {
		return models.CardItem{}, false
	}
	return e.item, true
}

// Channel returns a value copy of one channel reached through a contact.
func (c *Cards) Channel(cardID, channelID string) (models.ChannelItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cardID]
	if !ok {
		return models.ChannelItem{}, false
	}
	return e.channels.get(channelID)
}

// SetReadRevision moves the read marker of a contact channel.
func (c *Cards) SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	if err := c.store.Channels.SetReadRevision(ctx, cardID, channelID, revision); err != nil {
		return err
	}
	c.withChannels(cardID, func(a *channelArena) { a.setReadRevision(channelID, revision) })
	c.publish()
	return nil
}

// SetSyncRevision records how far a conversation pass has folded a contact
// channel's topics.
func (c *Cards) SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	if err := c.store.Channels.SetSyncRevision(ctx, cardID, channelID, revision); err != nil {
		return err
	}
	c.withChannels(cardID, func(a *channelArena) { a.setSyncRevision(channelID, revision) })
	return nil
}

// SetChannelBlocked hides or unhides a contact channel locally.
func (c *Cards) SetChannelBlocked(ctx context.Context, cardID, channelID string, blocked bool) error {
	if err := c.store.Channels.SetBlocked(ctx, cardID, channelID, blocked); err != nil {
		return err
	}
	c.withChannels(cardID, func(a *channelArena) { a.setBlocked(channelID, blocked) })
	c.publish()
	return nil
}

// SetBlocked hides or unhides a contact locally. Blocking is a local filter;
// sync keeps folding the card.
func (c *Cards) SetBlocked(ctx context.Context, cardID string, blocked bool) error {
	if err := c.store.Cards.SetBlocked(ctx, cardID, blocked); err != nil {
		return err
	}
	c.mu.Lock()
	if e, ok := c.entries[cardID]; ok {
		e.item.Blocked = blocked
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// pass folds one delta batch and cascades per record. Fold errors abort the
// pass; cascade errors are contained per card.
func (c *Cards) pass(ctx context.Context, target int64) error {
	deltas, err := c.api.GetCardDeltas(ctx, c.engine.Applied())
	if err != nil {
		return err
	}
	for i := range deltas {
		rec := &deltas[i]
		if rec.Data == nil {
			if err := c.removeCard(ctx, rec.ID); err != nil {
				return err
			}
			continue
		}
		if err := c.foldCard(ctx, rec); err != nil {
			return err
		}
		c.cascade(ctx, rec.ID, rec.Data, false)
	}
	if err := c.drainResync(ctx); err != nil {
		return err
	}
	if err := c.store.Cursors.SetRevision(ctx, cursors.KeyCardRevision, target); err != nil {
		return err
	}
	c.publish()
	return nil
}

// drainResync refetches explicitly queued cards and forces their cascade.
func (c *Cards) drainResync(ctx context.Context) error {
	c.mu.Lock()
	queued := c.resync
	c.resync = nil
	c.mu.Unlock()
	for _, cardID := range queued {
		rec, err := c.api.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if rec.Data == nil {
			if err := c.removeCard(ctx, rec.ID); err != nil {
				return err
			}
			continue
		}
		if err := c.foldCard(ctx, rec); err != nil {
			return err
		}
		c.cascade(ctx, rec.ID, rec.Data, true)
	}
	return nil
}

// removeCard tears the card and all nested state down together.
func (c *Cards) removeCard(ctx context.Context, cardID string) error {
	err := c.store.Atomic(ctx, func(r *store.Store) error {
		if err := r.Topics.DeleteByCard(ctx, cardID); err != nil {
			return err
		}
		if err := r.Channels.DeleteByCard(ctx, cardID); err != nil {
			return err
		}
		return r.Cards.Delete(ctx, cardID)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, cardID)
	c.mu.Unlock()
	return nil
}

// foldCard applies one card delta: inline payloads are stored directly,
// summary-only records trigger revision-gated sub-resource fetches.
func (c *Cards) foldCard(ctx context.Context, rec *models.CardDelta) error {
	data := rec.Data

	if data.CardDetail != nil && data.CardProfile != nil {
		return c.upsertCard(ctx, rec, data.CardDetail, data.CardProfile)
	}

	cur, ok := c.Card(rec.ID)
	if !ok {
		detail, err := c.api.GetCardDetail(ctx, rec.ID)
		if err != nil {
			return err
		}
		profile, err := c.api.GetCardProfile(ctx, rec.ID)
		if err != nil {
			return err
		}
		return c.upsertCard(ctx, rec, detail, profile)
	}

	if cur.DetailRevision != data.DetailRevision {
		detail, err := c.api.GetCardDetail(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := c.store.Cards.SetDetail(ctx, rec.ID, detail, data.DetailRevision); err != nil {
			return err
		}
		c.withEntry(rec.ID, func(e *cardEntry) {
			e.item.Detail = detail
			e.item.DetailRevision = data.DetailRevision
		})
	}
	if cur.ProfileRevision != data.ProfileRevision {
		profile, err := c.api.GetCardProfile(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := c.store.Cards.SetProfile(ctx, rec.ID, profile, data.ProfileRevision); err != nil {
			return err
		}
		c.withEntry(rec.ID, func(e *cardEntry) {
			e.item.Profile = profile
			e.item.ProfileRevision = data.ProfileRevision
		})
	}
	if err := c.store.Cards.SetRevision(ctx, rec.ID, rec.Revision); err != nil {
		return err
	}
	c.withEntry(rec.ID, func(e *cardEntry) { e.item.Revision = rec.Revision })
	return nil
}

func (c *Cards) upsertCard(ctx context.Context, rec *models.CardDelta, detail *models.CardDetail, profile *models.CardProfile) error {
	item := &models.CardItem{
		CardID:          rec.ID,
		Revision:        rec.Revision,
		DetailRevision:  rec.Data.DetailRevision,
		ProfileRevision: rec.Data.ProfileRevision,
		Detail:          detail,
		Profile:         profile,
	}
	if err := c.store.Cards.Upsert(ctx, item); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[rec.ID]
	if !ok {
		e = &cardEntry{channels: newChannelArena()}
		c.entries[rec.ID] = e
	}
	// Notified watermarks and local flags survive the fold; they advance
	// only through their dedicated setters.
	next := *item
	next.NotifiedView = e.item.NotifiedView
	next.NotifiedProfile = e.item.NotifiedProfile
	next.NotifiedArticle = e.item.NotifiedArticle
	next.NotifiedChannel = e.item.NotifiedChannel
	next.Blocked = e.item.Blocked
	next.Offsync = e.item.Offsync
	e.item = next
	return nil
}

// cascade reconciles one card's remote collections. Errors never propagate:
// the card is flagged offsync and the batch moves on.
func (c *Cards) cascade(ctx context.Context, cardID string, data *models.CardData, force bool) {
	status, ok := c.Card(cardID)
	if !ok {
		return
	}
	dest, ok := status.Destination()
	if !ok {
		return
	}
	if err := c.syncContact(ctx, cardID, &status, dest, data, force); err != nil {
		c.log.Warn(ctx, "contact sync failed", "cardId", cardID, "node", dest.Node, "error", err)
		c.markOffsync(ctx, cardID, true)
		return
	}
	if status.Offsync {
		c.markOffsync(ctx, cardID, false)
	}
}

func (c *Cards) markOffsync(ctx context.Context, cardID string, offsync bool) {
	if err := c.store.Cards.SetOffsync(ctx, cardID, offsync); err != nil {
		c.log.Error(ctx, "offsync flag persist failed", "cardId", cardID, "error", err)
		return
	}
	c.mu.Lock()
	if e, ok := c.entries[cardID]; ok {
		e.item.Offsync = offsync
	}
	c.mu.Unlock()
}

// syncContact compares the persisted notified watermarks against the
// server's and pulls whatever moved. Each watermark advances only after its
// cascade step fully succeeded, so an aborted step replays on the next pass.
func (c *Cards) syncContact(ctx context.Context, cardID string, status *models.CardItem, dest models.Destination, data *models.CardData, force bool) error {
	switch {
	case status.NotifiedView != data.NotifiedView:
		// The visibility scope rotated: nothing previously synced through
		// this card is verifiable, so clear and refetch from zero.
		err := c.store.Atomic(ctx, func(r *store.Store) error {
			if err := r.Topics.DeleteByCard(ctx, cardID); err != nil {
				return err
			}
			return r.Channels.DeleteByCard(ctx, cardID)
		})
		if err != nil {
			return err
		}
		c.withChannels(cardID, func(a *channelArena) { a.clear() })
		if err := c.syncContactChannels(ctx, cardID, dest, data.NotifiedView, 0); err != nil {
			return err
		}
		if err := c.store.Cards.SetNotifiedChannel(ctx, cardID, data.NotifiedChannel); err != nil {
			return err
		}
		c.withEntry(cardID, func(e *cardEntry) { e.item.NotifiedChannel = data.NotifiedChannel })
		if err := c.store.Cards.SetNotifiedArticle(ctx, cardID, data.NotifiedArticle); err != nil {
			return err
		}
		c.withEntry(cardID, func(e *cardEntry) { e.item.NotifiedArticle = data.NotifiedArticle })
		if err := c.store.Cards.SetNotifiedView(ctx, cardID, data.NotifiedView); err != nil {
			return err
		}
		c.withEntry(cardID, func(e *cardEntry) { e.item.NotifiedView = data.NotifiedView })

	case status.NotifiedChannel != data.NotifiedChannel || force:
		if err := c.syncContactChannels(ctx, cardID, dest, status.NotifiedView, status.NotifiedChannel); err != nil {
			return err
		}
		if err := c.store.Cards.SetNotifiedChannel(ctx, cardID, data.NotifiedChannel); err != nil {
			return err
		}
		c.withEntry(cardID, func(e *cardEntry) { e.item.NotifiedChannel = data.NotifiedChannel })
	}

	if status.NotifiedProfile != data.NotifiedProfile {
		profile, err := c.contact.GetContactProfile(ctx, dest)
		if err != nil {
			return err
		}
		// Report the fresh profile to the home node; the updated payload
		// folds back in through the card delta this write produces.
		if err := c.api.SetCardProfile(ctx, cardID, profile); err != nil {
			return err
		}
		if err := c.store.Cards.SetNotifiedProfile(ctx, cardID, data.NotifiedProfile); err != nil {
			return err
		}
		c.withEntry(cardID, func(e *cardEntry) { e.item.NotifiedProfile = data.NotifiedProfile })
	}
	return nil
}

// syncContactChannels range-scans the channel collection the contact exposes
// to us and folds it like any other channel set.
func (c *Cards) syncContactChannels(ctx context.Context, cardID string, dest models.Destination, viewRevision, since int64) error {
	deltas, err := c.contact.GetContactChannelDeltas(ctx, dest, viewRevision, since)
	if err != nil {
		return err
	}
	f := &channelFolder{
		cardID: cardID,
		store:  c.store,
		sink:   &cardChannelSink{cards: c, cardID: cardID},
		detail: func(ctx context.Context, channelID string) (*models.ChannelDetail, error) {
			return c.contact.GetContactChannelDetail(ctx, dest, channelID)
		},
		summary: func(ctx context.Context, channelID string) (*models.ChannelSummary, error) {
			return c.contact.GetContactChannelSummary(ctx, dest, channelID)
		},
	}
	return f.fold(ctx, deltas)
}

func (c *Cards) withEntry(cardID string, fn func(e *cardEntry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[cardID]; ok {
		fn(e)
	}
}

func (c *Cards) withChannels(cardID string, fn func(a *channelArena)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[cardID]; ok {
		fn(e.channels)
	}
}

func (c *Cards) publish() {
	c.mu.RLock()
	fn := c.onUpdate
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// cardChannelSink routes folder mutations into one card's channel arena
// under the coordinator lock.
type cardChannelSink struct {
	cards  *Cards
	cardID string
}

func (s *cardChannelSink) get(channelID string) (models.ChannelItem, bool) {
	return s.cards.Channel(s.cardID, channelID)
}

func (s *cardChannelSink) upsert(item *models.ChannelItem) {
	s.cards.withChannels(s.cardID, func(a *channelArena) { a.upsert(item) })
}

func (s *cardChannelSink) setDetail(channelID string, detail *models.ChannelDetail, revision int64) {
	s.cards.withChannels(s.cardID, func(a *channelArena) { a.setDetail(channelID, detail, revision) })
}

func (s *cardChannelSink) setSummary(channelID string, summary *models.ChannelSummary, revision int64) {
	s.cards.withChannels(s.cardID, func(a *channelArena) { a.setSummary(channelID, summary, revision) })
}

func (s *cardChannelSink) setRevision(channelID string, revision int64) {
	s.cards.withChannels(s.cardID, func(a *channelArena) { a.setRevision(channelID, revision) })
}

func (s *cardChannelSink) remove(channelID string) {
	s.cards.withChannels(s.cardID, func(a *channelArena) { a.remove(channelID) })
}
