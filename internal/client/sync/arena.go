package sync

import (
	"sort"

	"github.com/driftsync/driftsync/internal/client/models"
)

// channelArena is the in-memory channel set of one scope (hosted, or one
// card). It is not safe for concurrent use; the owning coordinator locks
// around it.
type channelArena struct {
	items map[string]*models.ChannelItem
}

func newChannelArena() *channelArena {
	return &channelArena{items: make(map[string]*models.ChannelItem)}
}

func (a *channelArena) get(channelID string) (models.ChannelItem, bool) {
	item, ok := a.items[channelID]
	if !ok {
		return models.ChannelItem{}, false
	}
	return *item, true
}

// upsert replaces the synced fields while preserving the local marks
// (read/sync watermarks and the blocked flag), mirroring the repository
// upsert.
func (a *channelArena) upsert(item *models.ChannelItem) {
	next := *item
	if cur, ok := a.items[item.ChannelID]; ok {
		next.ReadRevision = cur.ReadRevision
		next.SyncRevision = cur.SyncRevision
		next.Blocked = cur.Blocked
	}
	a.items[item.ChannelID] = &next
}

func (a *channelArena) setDetail(channelID string, detail *models.ChannelDetail, revision int64) {
	if cur, ok := a.items[channelID]; ok {
		cur.Detail = detail
		cur.DetailRevision = revision
	}
}

func (a *channelArena) setSummary(channelID string, summary *models.ChannelSummary, revision int64) {
	if cur, ok := a.items[channelID]; ok {
		cur.Summary = summary
		cur.TopicRevision = revision
	}
}

func (a *channelArena) setRevision(channelID string, revision int64) {
	if cur, ok := a.items[channelID]; ok {
		cur.Revision = revision
	}
}

func (a *channelArena) setReadRevision(channelID string, revision int64) {
	if cur, ok := a.items[channelID]; ok {
		cur.ReadRevision = revision
	}
}

func (a *channelArena) setSyncRevision(channelID string, revision int64) {
	if cur, ok := a.items[channelID]; ok {
		cur.SyncRevision = revision
	}
}

func (a *channelArena) setBlocked(channelID string, blocked bool) {
	if cur, ok := a.items[channelID]; ok {
		cur.Blocked = blocked
	}
}

func (a *channelArena) remove(channelID string) {
	delete(a.items, channelID)
}

func (a *channelArena) clear() {
	a.items = make(map[string]*models.ChannelItem)
}

// list returns value copies ordered by channel id.
func (a *channelArena) list() []models.ChannelItem {
	out := make([]models.ChannelItem, 0, len(a.items))
	for _, item := range a.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}
