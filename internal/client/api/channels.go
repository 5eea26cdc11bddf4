package api

import (
	"context"
	"encoding/json"
	"path"

	"github.com/driftsync/driftsync/internal/client/models"
)

// GetChannelDeltas range-scans the hosted channel collection since the given
// revision.
func (c *Client) GetChannelDeltas(ctx context.Context, since int64) ([]models.ChannelDelta, error) {
	q := c.agent()
	q.Set("channelRevision", formatRevision(since))
	var deltas []models.ChannelDelta
	if err := c.get(ctx, "/content/channels", q, &deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}

// GetChannelDetail fetches the detail sub-resource of a hosted channel.
func (c *Client) GetChannelDetail(ctx context.Context, channelID string) (*models.ChannelDetail, error) {
	var detail models.ChannelDetail
	if err := c.get(ctx, path.Join("/content/channels", channelID, "detail"), c.agent(), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetChannelSummary fetches the last-topic summary of a hosted channel.
func (c *Client) GetChannelSummary(ctx context.Context, channelID string) (*models.ChannelSummary, error) {
	var summary models.ChannelSummary
	if err := c.get(ctx, path.Join("/content/channels", channelID, "summary"), c.agent(), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// AddChannel creates a hosted channel with the given subject and member
// cards, returning the new channel id.
func (c *Client) AddChannel(ctx context.Context, subject string, cardIDs []string) (string, error) {
	data, err := json.Marshal(map[string]string{"subject": subject})
	if err != nil {
		return "", err
	}
	in := struct {
		DataType string   `json:"dataType"`
		Data     string   `json:"data"`
		Cards    []string `json:"cards"`
	}{"superbasic", string(data), cardIDs}

	var delta models.ChannelDelta
	if err := c.post(ctx, "/content/channels", c.agent(), in, &delta); err != nil {
		return "", err
	}
	return delta.ID, nil
}

// SetChannelSubject updates the subject of a hosted channel.
func (c *Client) SetChannelSubject(ctx context.Context, channelID, subject string) error {
	data, err := json.Marshal(map[string]string{"subject": subject})
	if err != nil {
		return err
	}
	in := struct {
		DataType string `json:"dataType"`
		Data     string `json:"data"`
	}{"superbasic", string(data)}
	return c.put(ctx, path.Join("/content/channels", channelID, "subject"), c.agent(), in, nil)
}

// SetChannelCard adds a member card to a hosted channel.
func (c *Client) SetChannelCard(ctx context.Context, channelID, cardID string) error {
	return c.put(ctx, path.Join("/content/channels", channelID, "cards", cardID), c.agent(), nil, nil)
}

// ClearChannelCard removes a member card from a hosted channel.
func (c *Client) ClearChannelCard(ctx context.Context, channelID, cardID string) error {
	return c.delete(ctx, path.Join("/content/channels", channelID, "cards", cardID), c.agent())
}

// RemoveChannel deletes a hosted channel; the removal is observed through
// the next channel collection delta.
func (c *Client) RemoveChannel(ctx context.Context, channelID string) error {
	return c.delete(ctx, path.Join("/content/channels", channelID), c.agent())
}
