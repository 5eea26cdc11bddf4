// Package channels persists channel snapshots for the local replica, both
// hosted channels (empty card id) and channels reached through a contact.
package channels

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
)

// Repository stores channel items keyed by (card id, channel id). Hosted
// channels use an empty card id.
type Repository interface {
	Upsert(ctx context.Context, item *models.ChannelItem) error
	SetRevision(ctx context.Context, cardID, channelID string, revision int64) error
	SetDetail(ctx context.Context, cardID, channelID string, detail *models.ChannelDetail, revision int64) error
	SetSummary(ctx context.Context, cardID, channelID string, summary *models.ChannelSummary, revision int64) error
	SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error
	SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error
	SetBlocked(ctx context.Context, cardID, channelID string, blocked bool) error
	Delete(ctx context.Context, cardID, channelID string) error
	DeleteByCard(ctx context.Context, cardID string) error
	Get(ctx context.Context, cardID, channelID string) (*models.ChannelItem, error)
	GetByCard(ctx context.Context, cardID string) ([]models.ChannelItem, error)
	GetAll(ctx context.Context) ([]models.ChannelItem, error)
}
