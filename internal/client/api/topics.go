package api

import (
	"context"
	"encoding/json"
	"path"

	"github.com/driftsync/driftsync/internal/client/models"
)

// subjectBody wraps a message into the generic subject envelope. A nil
// message produces an empty body, creating an unconfirmed placeholder.
func subjectBody(msg *models.Message) any {
	if msg == nil {
		return map[string]any{}
	}
	data, _ := json.Marshal(msg)
	return struct {
		DataType string `json:"dataType"`
		Data     string `json:"data"`
	}{"superbasictopic", string(data)}
}

// GetTopics range-scans a hosted channel's topic collection since the given
// revision. The response carries the collection revision the batch reaches.
func (c *Client) GetTopics(ctx context.Context, channelID string, since int64) (*models.TopicBatch, error) {
	q := c.agent()
	q.Set("revision", formatRevision(since))
	var batch models.TopicBatch
	if err := c.get(ctx, path.Join("/content/channels", channelID, "topics"), q, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// GetTopic fetches a single topic with its full detail payload.
func (c *Client) GetTopic(ctx context.Context, channelID, topicID string) (*models.TopicDelta, error) {
	var delta models.TopicDelta
	if err := c.get(ctx, path.Join("/content/channels", channelID, "topics", topicID), c.agent(), &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// AddTopic creates a topic on a hosted channel. With confirm set, the
// subject is written and the topic is immediately confirmed; otherwise an
// unconfirmed placeholder is created for asset attachment, and the returned
// id is handed to the upload worker.
func (c *Client) AddTopic(ctx context.Context, channelID string, msg *models.Message, confirm bool) (string, error) {
	q := c.agent()
	if confirm {
		q.Set("confirm", "true")
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, path.Join("/content/channels", channelID, "topics"), q, subjectBody(msg), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// SetTopicSubject writes the subject of a pending topic and confirms it.
func (c *Client) SetTopicSubject(ctx context.Context, channelID, topicID string, msg *models.Message) error {
	q := c.agent()
	q.Set("confirm", "true")
	return c.put(ctx, path.Join("/content/channels", channelID, "topics", topicID, "subject"), q, subjectBody(msg), nil)
}

// RemoveTopic deletes a topic, including an orphaned unconfirmed one.
func (c *Client) RemoveTopic(ctx context.Context, channelID, topicID string) error {
	return c.delete(ctx, path.Join("/content/channels", channelID, "topics", topicID), c.agent())
}
