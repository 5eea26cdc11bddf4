package api

import (
	"context"

	"github.com/driftsync/driftsync/internal/client/models"
)

// GetAccountStatus fetches the account-level state.
func (c *Client) GetAccountStatus(ctx context.Context) (*models.AccountStatus, error) {
	var status models.AccountStatus
	if err := c.get(ctx, "/account/status", c.agent(), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetProfile fetches the local user's own profile.
func (c *Client) GetProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.get(ctx, "/profile", c.agent(), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetProfileData updates the mutable profile fields. The change is observed
// through the next profile revision, not applied locally here.
func (c *Client) SetProfileData(ctx context.Context, data models.ProfileData) error {
	return c.put(ctx, "/profile/data", c.agent(), data, nil)
}

// SetAccountSearchable toggles registry visibility.
func (c *Client) SetAccountSearchable(ctx context.Context, flag bool) error {
	return c.put(ctx, "/account/searchable", c.agent(), flag, nil)
}

// GetGroupDeltas range-scans the group collection since the given revision.
func (c *Client) GetGroupDeltas(ctx context.Context, since int64) ([]models.GroupDelta, error) {
	q := c.agent()
	q.Set("revision", formatRevision(since))
	var deltas []models.GroupDelta
	if err := c.get(ctx, "/alias/groups", q, &deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}
