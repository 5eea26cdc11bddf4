package api

import (
	"context"
	"net/url"
	"path"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
)

// Contact-node calls. These run against a peer node on behalf of a card,
// authenticated with the composite contact token rather than the session
// token.

func contactQuery(dest models.Destination) url.Values {
	q := url.Values{}
	q.Set(common.ContactParamName, dest.Token)
	return q
}

// GetContactProfile pulls the peer's current profile from their node.
func (c *Client) GetContactProfile(ctx context.Context, dest models.Destination) (*models.CardProfile, error) {
	var profile models.CardProfile
	rawurl := c.t.endpoint(dest.Node, "/profile/message", contactQuery(dest))
	if err := c.t.do(ctx, "GET", rawurl, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetContactChannelDeltas range-scans the channel collection the peer
// exposes to us. viewRevision pins the visibility scope; channelRevision is
// the range-scan cursor (zero for a full refetch after a view reset).
func (c *Client) GetContactChannelDeltas(ctx context.Context, dest models.Destination, viewRevision, channelRevision int64) ([]models.ChannelDelta, error) {
	q := contactQuery(dest)
	q.Set("viewRevision", formatRevision(viewRevision))
	if channelRevision > 0 {
		q.Set("channelRevision", formatRevision(channelRevision))
	}
	var deltas []models.ChannelDelta
	rawurl := c.t.endpoint(dest.Node, "/contact/channels", q)
	if err := c.t.do(ctx, "GET", rawurl, nil, &deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}

// GetContactChannelDetail fetches the detail sub-resource of a contact
// channel.
func (c *Client) GetContactChannelDetail(ctx context.Context, dest models.Destination, channelID string) (*models.ChannelDetail, error) {
	var detail models.ChannelDetail
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "detail"), contactQuery(dest))
	if err := c.t.do(ctx, "GET", rawurl, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetContactChannelSummary fetches the last-topic summary of a contact
// channel.
func (c *Client) GetContactChannelSummary(ctx context.Context, dest models.Destination, channelID string) (*models.ChannelSummary, error) {
	var summary models.ChannelSummary
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "summary"), contactQuery(dest))
	if err := c.t.do(ctx, "GET", rawurl, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetContactTopics range-scans a contact channel's topic collection.
func (c *Client) GetContactTopics(ctx context.Context, dest models.Destination, channelID string, since int64) (*models.TopicBatch, error) {
	q := contactQuery(dest)
	q.Set("revision", formatRevision(since))
	var batch models.TopicBatch
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics"), q)
	if err := c.t.do(ctx, "GET", rawurl, nil, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetContactTopic fetches a single topic with its full detail payload from a
// contact channel.
func (c *Client) GetContactTopic(ctx context.Context, dest models.Destination, channelID, topicID string) (*models.TopicDelta, error) {
	var delta models.TopicDelta
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics", topicID), contactQuery(dest))
	if err := c.t.do(ctx, "GET", rawurl, nil, &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// AddContactTopic creates a topic on a contact channel, confirmed or as an
// unconfirmed placeholder for asset attachment.
func (c *Client) AddContactTopic(ctx context.Context, dest models.Destination, channelID string, msg *models.Message, confirm bool) (string, error) {
	q := contactQuery(dest)
	if confirm {
		q.Set("confirm", "true")
	}
	var created struct {
		ID string `json:"id"`
	}
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics"), q)
	if err := c.t.do(ctx, "POST", rawurl, subjectBody(msg), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// SetContactTopicSubject writes the subject of a pending topic on a contact
// channel and confirms it.
func (c *Client) SetContactTopicSubject(ctx context.Context, dest models.Destination, channelID, topicID string, msg *models.Message) error {
	q := contactQuery(dest)
	q.Set("confirm", "true")
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics", topicID, "subject"), q)
	return c.t.do(ctx, "PUT", rawurl, subjectBody(msg), nil)
}

// RemoveContactTopic deletes a topic on a contact channel.
func (c *Client) RemoveContactTopic(ctx context.Context, dest models.Destination, channelID, topicID string) error {
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics", topicID), contactQuery(dest))
	return c.t.do(ctx, "DELETE", rawurl, nil, nil)
}

// RemoveContactChannel leaves a channel hosted by the contact.
func (c *Client) RemoveContactChannel(ctx context.Context, dest models.Destination, channelID string) error {
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID), contactQuery(dest))
	return c.t.do(ctx, "DELETE", rawurl, nil, nil)
}
