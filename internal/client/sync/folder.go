package sync

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/store"
)

// channelSink receives in-memory channel mutations mirroring the repository
// writes of a fold. Implementations handle their own locking.
type channelSink interface {
	get(channelID string) (models.ChannelItem, bool)
	upsert(item *models.ChannelItem)
	setDetail(channelID string, detail *models.ChannelDetail, revision int64)
	setSummary(channelID string, summary *models.ChannelSummary, revision int64)
	setRevision(channelID string, revision int64)
	remove(channelID string)
}

// channelFolder applies one batch of channel deltas against the store and an
// in-memory sink. The same fold serves hosted channels and contact channels;
// only the fetch functions and the card id differ.
type channelFolder struct {
	cardID  string
	store   *store.Store
	sink    channelSink
	detail  func(ctx context.Context, channelID string) (*models.ChannelDetail, error)
	summary func(ctx context.Context, channelID string) (*models.ChannelSummary, error)
}

func (f *channelFolder) fold(ctx context.Context, deltas []models.ChannelDelta) error {
	for i := range deltas {
		rec := &deltas[i]
		if rec.Data == nil {
			if err := f.remove(ctx, rec.ID); err != nil {
				return err
			}
			continue
		}
		if err := f.apply(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// remove tears down a channel and its topics together.
func (f *channelFolder) remove(ctx context.Context, channelID string) error {
	err := f.store.Atomic(ctx, func(r *store.Store) error {
		if err := r.Topics.DeleteByChannel(ctx, f.cardID, channelID); err != nil {
			return err
		}
		return r.Channels.Delete(ctx, f.cardID, channelID)
	})
	if err != nil {
		return err
	}
	f.sink.remove(channelID)
	return nil
}

func (f *channelFolder) apply(ctx context.Context, rec *models.ChannelDelta) error {
	data := rec.Data

	// Full inline payload: store as-is, no sub-resource fetches.
	if data.ChannelDetail != nil && data.ChannelSummary != nil {
		item := &models.ChannelItem{
			CardID:         f.cardID,
			ChannelID:      rec.ID,
			Revision:       rec.Revision,
			DetailRevision: data.DetailRevision,
			TopicRevision:  data.TopicRevision,
			Detail:         data.ChannelDetail,
			Summary:        data.ChannelSummary,
		}
		if err := f.store.Channels.Upsert(ctx, item); err != nil {
			return err
		}
		f.sink.upsert(item)
		return nil
	}

	cur, ok := f.sink.get(rec.ID)
	if !ok {
		// First sighting as a summary-only record: assemble from the
		// sub-resources.
		detail, err := f.detail(ctx, rec.ID)
		if err != nil {
			return err
		}
		summary, err := f.summary(ctx, rec.ID)
		if err != nil {
			return err
		}
		item := &models.ChannelItem{
			CardID:         f.cardID,
			ChannelID:      rec.ID,
			Revision:       rec.Revision,
			DetailRevision: data.DetailRevision,
			TopicRevision:  data.TopicRevision,
			Detail:         detail,
			Summary:        summary,
		}
		if err := f.store.Channels.Upsert(ctx, item); err != nil {
			return err
		}
		f.sink.upsert(item)
		return nil
	}

	// Per-field gates: detail and summary refresh independently.
	if cur.DetailRevision != data.DetailRevision {
		detail, err := f.detail(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := f.store.Channels.SetDetail(ctx, f.cardID, rec.ID, detail, data.DetailRevision); err != nil {
			return err
		}
		f.sink.setDetail(rec.ID, detail, data.DetailRevision)
	}
	if cur.TopicRevision != data.TopicRevision {
		summary, err := f.summary(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := f.store.Channels.SetSummary(ctx, f.cardID, rec.ID, summary, data.TopicRevision); err != nil {
			return err
		}
		f.sink.setSummary(rec.ID, summary, data.TopicRevision)
	}
	if err := f.store.Channels.SetRevision(ctx, f.cardID, rec.ID, rec.Revision); err != nil {
		return err
	}
	f.sink.setRevision(rec.ID, rec.Revision)
	return nil
}
