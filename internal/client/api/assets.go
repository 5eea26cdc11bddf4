package api

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"path"

	"github.com/driftsync/driftsync/internal/client/models"
)

func transformQuery(q url.Values, transforms []string) url.Values {
	if len(transforms) > 0 {
		encoded, _ := json.Marshal(transforms)
		q.Set("transforms", string(encoded))
	}
	return q
}

// AddTopicAsset streams one file onto a pending hosted topic. The node
// applies the requested transforms and returns the resulting asset ids; the
// caller references them in the subject write that confirms the topic.
func (c *Client) AddTopicAsset(ctx context.Context, channelID, topicID, filename string, src io.Reader, transforms []string) ([]models.AssetMeta, error) {
	q := transformQuery(c.agent(), transforms)
	var metas []models.AssetMeta
	rawurl := c.t.endpoint(c.server, path.Join("/content/channels", channelID, "topics", topicID, "assets"), q)
	if err := c.t.upload(ctx, rawurl, "asset", filename, src, &metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// AddContactTopicAsset streams one file onto a pending topic of a contact
// channel.
func (c *Client) AddContactTopicAsset(ctx context.Context, dest models.Destination, channelID, topicID, filename string, src io.Reader, transforms []string) ([]models.AssetMeta, error) {
	q := transformQuery(contactQuery(dest), transforms)
	var metas []models.AssetMeta
	rawurl := c.t.endpoint(dest.Node, path.Join("/contact/channels", channelID, "topics", topicID, "assets"), q)
	if err := c.t.upload(ctx, rawurl, "asset", filename, src, &metas); err != nil {
		return nil, err
	}
	return metas, nil
}
