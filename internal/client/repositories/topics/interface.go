// Package topics persists topic snapshots for the local replica.
package topics

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
)

// Repository stores topic items keyed by (card id, channel id, topic id).
// Hosted channels use an empty card id.
type Repository interface {
	Upsert(ctx context.Context, cardID, channelID string, item *models.TopicItem) error
	SetBlocked(ctx context.Context, cardID, channelID, topicID string, blocked bool) error
	Delete(ctx context.Context, cardID, channelID, topicID string) error
	DeleteByChannel(ctx context.Context, cardID, channelID string) error
	DeleteByCard(ctx context.Context, cardID string) error
	GetByChannel(ctx context.Context, cardID, channelID string) ([]models.TopicItem, error)
}
