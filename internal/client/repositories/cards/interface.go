// Package cards persists card snapshots for the local replica.
package cards

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
)

// Repository stores card items keyed by card id.
//
// Upsert never touches the notified watermarks: those advance only through
// the dedicated setters, after the corresponding cascade succeeded.
type Repository interface {
	Upsert(ctx context.Context, item *models.CardItem) error
	SetRevision(ctx context.Context, cardID string, revision int64) error
	SetDetail(ctx context.Context, cardID string, detail *models.CardDetail, revision int64) error
	SetProfile(ctx context.Context, cardID string, profile *models.CardProfile, revision int64) error
	SetNotifiedView(ctx context.Context, cardID string, revision int64) error
	SetNotifiedProfile(ctx context.Context, cardID string, revision int64) error
	SetNotifiedArticle(ctx context.Context, cardID string, revision int64) error
	SetNotifiedChannel(ctx context.Context, cardID string, revision int64) error
	SetOffsync(ctx context.Context, cardID string, offsync bool) error
	SetBlocked(ctx context.Context, cardID string, blocked bool) error
	Delete(ctx context.Context, cardID string) error
	Get(ctx context.Context, cardID string) (*models.CardItem, error)
	GetAll(ctx context.Context) ([]models.CardItem, error)
}
