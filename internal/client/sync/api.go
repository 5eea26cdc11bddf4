package sync

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
)

// CardAPI is the home-node card surface the card coordinator consumes.
// *api.Client implements it.
type CardAPI interface {
	GetCardDeltas(ctx context.Context, since int64) ([]models.CardDelta, error)
	GetCard(ctx context.Context, cardID string) (*models.CardDelta, error)
	GetCardDetail(ctx context.Context, cardID string) (*models.CardDetail, error)
	GetCardProfile(ctx context.Context, cardID string) (*models.CardProfile, error)
	SetCardProfile(ctx context.Context, cardID string, profile *models.CardProfile) error
}

// ContactAPI is the peer-node surface used when cascading into a contact's
// remote collections. *api.Client implements it.
type ContactAPI interface {
	GetContactProfile(ctx context.Context, dest models.Destination) (*models.CardProfile, error)
	GetContactChannelDeltas(ctx context.Context, dest models.Destination, viewRevision, channelRevision int64) ([]models.ChannelDelta, error)
	GetContactChannelDetail(ctx context.Context, dest models.Destination, channelID string) (*models.ChannelDetail, error)
	GetContactChannelSummary(ctx context.Context, dest models.Destination, channelID string) (*models.ChannelSummary, error)
}

// ChannelAPI is the home-node surface for channels hosted on the local
// account. *api.Client implements it.
type ChannelAPI interface {
	GetChannelDeltas(ctx context.Context, since int64) ([]models.ChannelDelta, error)
	GetChannelDetail(ctx context.Context, channelID string) (*models.ChannelDetail, error)
	GetChannelSummary(ctx context.Context, channelID string) (*models.ChannelSummary, error)
}

// TopicSource is the topic surface of one channel. The session binds it to
// either the home node or a contact node before focusing a conversation.
type TopicSource interface {
	GetTopics(ctx context.Context, since int64) (*models.TopicBatch, error)
	GetTopic(ctx context.Context, topicID string) (*models.TopicDelta, error)
}
