package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
)

func formatRevision(rev int64) string {
	return strconv.FormatInt(rev, 10)
}

// GetCardDeltas range-scans the card collection since the given revision.
// Records arrive in server order; later records override earlier ones for
// the same id.
func (c *Client) GetCardDeltas(ctx context.Context, since int64) ([]models.CardDelta, error) {
	q := c.agent()
	q.Set("revision", formatRevision(since))
	var deltas []models.CardDelta
	if err := c.get(ctx, "/contact/cards", q, &deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}

// GetCard fetches a single card delta record, used by explicit per-card
// resyncs.
func (c *Client) GetCard(ctx context.Context, cardID string) (*models.CardDelta, error) {
	var delta models.CardDelta
	if err := c.get(ctx, path.Join("/contact/cards", cardID), c.agent(), &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// GetCardDetail fetches the detail sub-resource of a card.
func (c *Client) GetCardDetail(ctx context.Context, cardID string) (*models.CardDetail, error) {
	var detail models.CardDetail
	if err := c.get(ctx, path.Join("/contact/cards", cardID, "detail"), c.agent(), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetCardProfile fetches the profile sub-resource of a card.
func (c *Client) GetCardProfile(ctx context.Context, cardID string) (*models.CardProfile, error) {
	var profile models.CardProfile
	if err := c.get(ctx, path.Join("/contact/cards", cardID, "profile"), c.agent(), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetCardProfile reports a freshly pulled contact profile back to the home
// node, which stores it and bumps the card's profile revision.
func (c *Client) SetCardProfile(ctx context.Context, cardID string, profile *models.CardProfile) error {
	return c.put(ctx, path.Join("/contact/cards", cardID, "profile"), c.agent(), profile, nil)
}

// AddCard registers a new contact from their profile and returns the
// assigned card id.
func (c *Client) AddCard(ctx context.Context, profile *models.CardProfile) (string, error) {
	var delta models.CardDelta
	if err := c.post(ctx, "/contact/cards", c.agent(), profile, &delta); err != nil {
		return "", err
	}
	return delta.ID, nil
}

// RemoveCard deletes the contact; the removal is observed through the next
// card collection delta.
func (c *Client) RemoveCard(ctx context.Context, cardID string) error {
	return c.delete(ctx, path.Join("/contact/cards", cardID), c.agent())
}

// SetCardConnecting marks the relationship as connecting before the open
// message exchange.
func (c *Client) SetCardConnecting(ctx context.Context, cardID string) error {
	return c.put(ctx, path.Join("/contact/cards", cardID, "status"), c.agent(), models.CardConnecting, nil)
}

// SetCardConnected stores the peer token and watermark baseline returned by
// the open message exchange.
func (c *Client) SetCardConnected(ctx context.Context, cardID string, result *models.ConnectResult) error {
	return c.put(ctx, path.Join("/contact/cards", cardID, "status"), c.agent(), struct {
		Status models.CardStatus     `json:"status"`
		Result *models.ConnectResult `json:"result"`
	}{models.CardConnected, result}, nil)
}

// SetCardConfirmed acknowledges a disconnected relationship.
func (c *Client) SetCardConfirmed(ctx context.Context, cardID string) error {
	return c.put(ctx, path.Join("/contact/cards", cardID, "status"), c.agent(), models.CardConfirmed, nil)
}

// GetCardOpenMessage fetches the signed open message the home node prepared
// for this card.
func (c *Client) GetCardOpenMessage(ctx context.Context, cardID string) (json.RawMessage, error) {
	var msg json.RawMessage
	if err := c.get(ctx, path.Join("/contact/cards", cardID, "openMessage"), c.agent(), &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeliverOpenMessage hands the open message to the peer node and returns the
// shared secret plus the peer's revision baseline.
func (c *Client) DeliverOpenMessage(ctx context.Context, node string, msg json.RawMessage) (*models.ConnectResult, error) {
	var result models.ConnectResult
	err := c.t.do(ctx, http.MethodPost, c.t.endpoint(node, "/contact/openMessage", nil), msg, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCardCloseMessage fetches the signed close message for this card.
func (c *Client) GetCardCloseMessage(ctx context.Context, cardID string) (json.RawMessage, error) {
	var msg json.RawMessage
	if err := c.get(ctx, path.Join("/contact/cards", cardID, "closeMessage"), c.agent(), &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeliverCloseMessage notifies the peer node of a disconnect. A missing peer
// is not an error: the relationship is already gone on their side.
func (c *Client) DeliverCloseMessage(ctx context.Context, node string, msg json.RawMessage) error {
	err := c.t.do(ctx, http.MethodPost, c.t.endpoint(node, "/contact/closeMessage", nil), msg, nil)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return nil
}
