package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarks struct {
	mu       gosync.Mutex
	channels map[string]*models.ChannelItem
	syncSets []int64
	readSets []int64
}

func newFakeMarks() *fakeMarks {
	return &fakeMarks{channels: make(map[string]*models.ChannelItem)}
}

func markKey(cardID, channelID string) string { return cardID + "/" + channelID }

func (m *fakeMarks) put(item *models.ChannelItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[markKey(item.CardID, item.ChannelID)] = item
}

func (m *fakeMarks) setTopicRevision(cardID, channelID string, revision int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[markKey(cardID, channelID)]; ok {
		ch.TopicRevision = revision
	}
}

func (m *fakeMarks) Channel(cardID, channelID string) (models.ChannelItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[markKey(cardID, channelID)]
	if !ok {
		return models.ChannelItem{}, false
	}
	return *ch, true
}

func (m *fakeMarks) SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[markKey(cardID, channelID)]
	if !ok {
		return common.ErrNotFound
	}
	ch.SyncRevision = revision
	m.syncSets = append(m.syncSets, revision)
	return nil
}

func (m *fakeMarks) SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[markKey(cardID, channelID)]
	if !ok {
		return common.ErrNotFound
	}
	ch.ReadRevision = revision
	m.readSets = append(m.readSets, revision)
	return nil
}

type fakeTopicSource struct {
	mu      gosync.Mutex
	batch   models.TopicBatch
	topics  map[string]*models.TopicDelta
	fetches int

	// when gate is set, GetTopics signals started and blocks until the gate
	// closes
	gate    chan struct{}
	started chan struct{}
}

func newFakeTopicSource() *fakeTopicSource {
	return &fakeTopicSource{topics: make(map[string]*models.TopicDelta)}
}

func (s *fakeTopicSource) setBatch(batch models.TopicBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = batch
}

func (s *fakeTopicSource) GetTopics(ctx context.Context, since int64) (*models.TopicBatch, error) {
	s.mu.Lock()
	gate, started := s.gate, s.started
	batch := s.batch
	batch.Topics = append([]models.TopicDelta(nil), s.batch.Topics...)
	s.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return &batch, nil
}

func (s *fakeTopicSource) GetTopic(ctx context.Context, topicID string) (*models.TopicDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	rec, ok := s.topics[topicID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func newTestConversation(t *testing.T) (*Conversation, *fakeMarks, *store.Store) {
	t.Helper()
	st := setupStore(t)
	marks := newFakeMarks()
	c := NewConversation(context.Background(), st, marks, testLogger())
	return c, marks, st
}

func TestConversation_FocusFoldsAndAdvancesSyncRevision(t *testing.T) {
	c, marks, st := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 4})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 4, Topics: []models.TopicDelta{
		inlineTopicDelta("t2", 2, 20),
		inlineTopicDelta("t1", 1, 10),
	}})

	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "t1", snap[0].TopicID, "ordered by creation time")
	assert.Equal(t, "t2", snap[1].TopicID)

	ch, ok := marks.Channel("", "ch1")
	require.True(t, ok)
	assert.Equal(t, int64(4), ch.SyncRevision)

	items, err := st.Topics.GetByChannel(context.Background(), "", "ch1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	cardID, channelID, focused := c.Focused()
	assert.True(t, focused)
	assert.Equal(t, "", cardID)
	assert.Equal(t, "ch1", channelID)
}

func TestConversation_FocusUnknownChannel(t *testing.T) {
	c, _, _ := newTestConversation(t)
	err := c.Focus("", "nope", newFakeTopicSource())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestConversation_SummaryOnlyRecordGatesOnDetailRevision(t *testing.T) {
	c, marks, _ := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 4})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 4, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
	}})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	// same detail revision: only the collection revision moves, no refetch
	source.setBatch(models.TopicBatch{Revision: 6, Topics: []models.TopicDelta{
		{ID: "t1", Revision: 6, Data: &models.TopicData{DetailRevision: 1}},
	}})
	marks.setTopicRevision("", "ch1", 6)
	c.Poke()
	c.Wait()

	source.mu.Lock()
	assert.Equal(t, 0, source.fetches)
	source.mu.Unlock()
	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(6), snap[0].Revision)
	assert.Equal(t, int64(1), snap[0].DetailRevision)

	// edited message: the detail revision moved, fetch the full topic
	source.mu.Lock()
	source.topics["t1"] = &models.TopicDelta{
		ID:       "t1",
		Revision: 7,
		Data: &models.TopicData{
			DetailRevision: 2,
			TopicDetail:    &models.TopicDetail{GUID: "guid-t1", Data: `{"text":"edited"}`, Created: 10, Status: models.TopicConfirmed},
		},
	}
	source.mu.Unlock()
	source.setBatch(models.TopicBatch{Revision: 7, Topics: []models.TopicDelta{
		{ID: "t1", Revision: 7, Data: &models.TopicData{DetailRevision: 2}},
	}})
	marks.setTopicRevision("", "ch1", 7)
	c.Poke()
	c.Wait()

	source.mu.Lock()
	assert.Equal(t, 1, source.fetches)
	source.mu.Unlock()
	snap = c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(2), snap[0].DetailRevision)
	assert.Equal(t, `{"text":"edited"}`, snap[0].Detail.Data)
}

func TestConversation_TombstoneRemovesTopic(t *testing.T) {
	c, marks, st := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 2})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 2, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
		inlineTopicDelta("t2", 2, 20),
	}})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	source.setBatch(models.TopicBatch{Revision: 3, Topics: []models.TopicDelta{
		{ID: "t1", Revision: 3},
	}})
	marks.setTopicRevision("", "ch1", 3)
	c.Poke()
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "t2", snap[0].TopicID)

	items, err := st.Topics.GetByChannel(context.Background(), "", "ch1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t2", items[0].TopicID)
}

func TestConversation_DeletedBetweenScanAndFetch(t *testing.T) {
	c, marks, st := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 2})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 2, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
	}})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	// the range scan still lists t1, but the full fetch finds it gone
	source.mu.Lock()
	source.topics["t1"] = &models.TopicDelta{ID: "t1", Revision: 4}
	source.mu.Unlock()
	source.setBatch(models.TopicBatch{Revision: 4, Topics: []models.TopicDelta{
		{ID: "t1", Revision: 4, Data: &models.TopicData{DetailRevision: 2}},
	}})
	marks.setTopicRevision("", "ch1", 4)
	c.Poke()
	c.Wait()

	assert.Empty(t, c.Snapshot())
	items, err := st.Topics.GetByChannel(context.Background(), "", "ch1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConversation_BlurDiscardsInFlightResults(t *testing.T) {
	c, marks, st := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 4})

	source := newFakeTopicSource()
	source.gate = make(chan struct{})
	source.started = make(chan struct{})
	source.setBatch(models.TopicBatch{Revision: 4, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
	}})

	require.NoError(t, c.Focus("", "ch1", source))
	<-source.started

	// the focus moved on while the pass was mid-flight
	c.Blur()
	close(source.gate)

	// the fold still lands in the store (valid replica data), but nothing
	// leaks into the new view and the watermark never advances
	require.Eventually(t, func() bool {
		items, err := st.Topics.GetByChannel(context.Background(), "", "ch1")
		return err == nil && len(items) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, c.Snapshot())
	ch, ok := marks.Channel("", "ch1")
	require.True(t, ok)
	assert.Equal(t, int64(0), ch.SyncRevision)

	_, _, focused := c.Focused()
	assert.False(t, focused)
}

func TestConversation_MarkRead(t *testing.T) {
	c, marks, _ := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 5, ReadRevision: 5})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 5})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	ctx := context.Background()

	// a marker at the revision counts as read
	require.NoError(t, c.MarkRead(ctx))
	marks.mu.Lock()
	assert.Empty(t, marks.readSets)
	marks.mu.Unlock()

	marks.setTopicRevision("", "ch1", 7)
	require.NoError(t, c.MarkRead(ctx))
	marks.mu.Lock()
	assert.Equal(t, []int64{7}, marks.readSets)
	marks.mu.Unlock()
}

func TestConversation_TopicBlockSurvivesRefold(t *testing.T) {
	c, marks, _ := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 2})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 2, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
	}})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	ctx := context.Background()
	require.NoError(t, c.SetTopicBlocked(ctx, "t1", true))

	source.setBatch(models.TopicBatch{Revision: 5, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 5, 10),
	}})
	marks.setTopicRevision("", "ch1", 5)
	c.Poke()
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(5), snap[0].Revision)
	assert.True(t, snap[0].Blocked)
}

func TestConversation_RefocusSeedsFromSyncRevision(t *testing.T) {
	c, marks, _ := newTestConversation(t)
	marks.put(&models.ChannelItem{ChannelID: "ch1", TopicRevision: 4})

	source := newFakeTopicSource()
	source.setBatch(models.TopicBatch{Revision: 4, Topics: []models.TopicDelta{
		inlineTopicDelta("t1", 1, 10),
	}})
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()
	c.Blur()

	// topics persisted by the first focus warm the arena on refocus, and the
	// engine resumes from the recorded sync revision with no scan
	require.NoError(t, c.Focus("", "ch1", source))
	c.Wait()

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "t1", snap[0].TopicID)

	marks.mu.Lock()
	assert.Equal(t, []int64{4}, marks.syncSets, "converged channel needs no second pass")
	marks.mu.Unlock()
}
