package sync

import (
	"context"
	gosync "sync"
	"testing"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/repositories/cursors"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannelAPI struct {
	mu        gosync.Mutex
	deltas    []models.ChannelDelta
	details   map[string]*models.ChannelDetail
	summaries map[string]*models.ChannelSummary

	err            error
	detailFetches  int
	summaryFetches int
}

func newFakeChannelAPI() *fakeChannelAPI {
	return &fakeChannelAPI{
		details:   make(map[string]*models.ChannelDetail),
		summaries: make(map[string]*models.ChannelSummary),
	}
}

func (f *fakeChannelAPI) GetChannelDeltas(ctx context.Context, since int64) ([]models.ChannelDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ChannelDelta, len(f.deltas))
	copy(out, f.deltas)
	return out, nil
}

func (f *fakeChannelAPI) GetChannelDetail(ctx context.Context, channelID string) (*models.ChannelDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailFetches++
	detail, ok := f.details[channelID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return detail, nil
}

func (f *fakeChannelAPI) GetChannelSummary(ctx context.Context, channelID string) (*models.ChannelSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryFetches++
	summary, ok := f.summaries[channelID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return summary, nil
}

func newTestChannels(t *testing.T, api *fakeChannelAPI) (*Channels, *store.Store) {
	t.Helper()
	st := setupStore(t)
	c := NewChannels(context.Background(), api, st, 0, testLogger())
	require.NoError(t, c.Load(context.Background()))
	return c, st
}

func syncChannels(t *testing.T, c *Channels, target int64) {
	t.Helper()
	c.RequestRevision(target)
	c.Wait()
}

func TestChannels_FoldsInlineDelta(t *testing.T) {
	api := newFakeChannelAPI()
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 3)}

	c, st := newTestChannels(t, api)
	ctx := context.Background()
	syncChannels(t, c, 3)

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "ch1", snap[0].ChannelID)
	assert.Equal(t, "", snap[0].CardID)
	assert.Equal(t, "ch1", snap[0].Detail.Subject())

	stored, err := st.Channels.Get(ctx, "", "ch1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Revision)

	rev, err := st.Cursors.GetRevision(ctx, cursors.KeyChannelRevision)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rev)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 0, api.detailFetches, "inline payloads need no sub-resource fetch")
	assert.Equal(t, 0, api.summaryFetches)
}

func TestChannels_AssemblesSummaryOnlyFirstSighting(t *testing.T) {
	api := newFakeChannelAPI()
	api.details["ch1"] = &models.ChannelDetail{Data: `{"subject":"fetched"}`}
	api.summaries["ch1"] = &models.ChannelSummary{LastTopic: &models.TopicDetail{Data: "latest"}}
	api.deltas = []models.ChannelDelta{{
		ID:       "ch1",
		Revision: 4,
		Data:     &models.ChannelData{DetailRevision: 2, TopicRevision: 3},
	}}

	c, st := newTestChannels(t, api)
	syncChannels(t, c, 4)

	ch, ok := c.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, "fetched", ch.Detail.Subject())
	assert.Equal(t, "latest", ch.Summary.LastTopic.Data)
	assert.Equal(t, int64(2), ch.DetailRevision)
	assert.Equal(t, int64(3), ch.TopicRevision)

	stored, err := st.Channels.Get(context.Background(), "", "ch1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.TopicRevision)
}

func TestChannels_PerFieldGates(t *testing.T) {
	api := newFakeChannelAPI()
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 3)}

	c, _ := newTestChannels(t, api)
	syncChannels(t, c, 3)

	// only the topic revision moved: the detail stays cached
	api.mu.Lock()
	api.summaries["ch1"] = &models.ChannelSummary{LastTopic: &models.TopicDetail{Data: "newer"}}
	api.deltas = []models.ChannelDelta{{
		ID:       "ch1",
		Revision: 6,
		Data:     &models.ChannelData{DetailRevision: 1, TopicRevision: 2},
	}}
	api.mu.Unlock()
	syncChannels(t, c, 6)

	api.mu.Lock()
	assert.Equal(t, 0, api.detailFetches)
	assert.Equal(t, 1, api.summaryFetches)
	api.mu.Unlock()

	ch, ok := c.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(6), ch.Revision)
	assert.Equal(t, int64(2), ch.TopicRevision)
	assert.Equal(t, "newer", ch.Summary.LastTopic.Data)
	assert.Equal(t, "ch1", ch.Detail.Subject())
}

func TestChannels_LocalMarksSurviveRefold(t *testing.T) {
	api := newFakeChannelAPI()
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 3)}

	c, st := newTestChannels(t, api)
	ctx := context.Background()
	syncChannels(t, c, 3)

	require.NoError(t, c.SetReadRevision(ctx, "ch1", 1))
	require.NoError(t, c.SetSyncRevision(ctx, "ch1", 1))
	require.NoError(t, c.SetBlocked(ctx, "ch1", true))

	api.mu.Lock()
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 7)}
	api.mu.Unlock()
	syncChannels(t, c, 7)

	ch, ok := c.Channel("ch1")
	require.True(t, ok)
	assert.Equal(t, int64(7), ch.Revision)
	assert.Equal(t, int64(1), ch.ReadRevision)
	assert.Equal(t, int64(1), ch.SyncRevision)
	assert.True(t, ch.Blocked)

	stored, err := st.Channels.Get(ctx, "", "ch1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ReadRevision)
	assert.Equal(t, int64(1), stored.SyncRevision)
	assert.True(t, stored.Blocked)
}

func TestChannels_TombstoneRemovesChannelAndTopics(t *testing.T) {
	api := newFakeChannelAPI()
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 3)}

	c, st := newTestChannels(t, api)
	ctx := context.Background()
	syncChannels(t, c, 3)

	require.NoError(t, st.Topics.Upsert(ctx, "", "ch1", &models.TopicItem{
		TopicID: "t1",
		Detail:  &models.TopicDetail{Data: "x"},
	}))

	api.mu.Lock()
	api.deltas = []models.ChannelDelta{{ID: "ch1", Revision: 5}}
	api.mu.Unlock()
	syncChannels(t, c, 5)

	_, ok := c.Channel("ch1")
	assert.False(t, ok)

	_, err := st.Channels.Get(ctx, "", "ch1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	topics, err := st.Topics.GetByChannel(ctx, "", "ch1")
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestChannels_FailedPassKeepsCursor(t *testing.T) {
	api := newFakeChannelAPI()
	api.err = common.ErrTransport

	c, st := newTestChannels(t, api)
	syncChannels(t, c, 2)

	assert.Equal(t, int64(0), c.Cursor().Applied())

	api.mu.Lock()
	api.err = nil
	api.deltas = []models.ChannelDelta{inlineChannelDelta("ch1", 2)}
	api.mu.Unlock()
	syncChannels(t, c, 2)

	assert.Equal(t, int64(2), c.Cursor().Applied())
	rev, err := st.Cursors.GetRevision(context.Background(), cursors.KeyChannelRevision)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
}
