package models

import "encoding/json"

// ChannelDelta is one record of a channel collection range scan. A nil Data
// is a tombstone.
type ChannelDelta struct {
	ID       string       `json:"id"`
	Revision int64        `json:"revision"`
	Data     *ChannelData `json:"data"`
}

// ChannelData carries the channel's per-field revisions plus optional inline
// payloads. DetailRevision guards subject/members, TopicRevision guards the
// message summary; the two move independently.
type ChannelData struct {
	DetailRevision int64 `json:"detailRevision"`
	TopicRevision  int64 `json:"topicRevision"`

	ChannelDetail  *ChannelDetail  `json:"channelDetail,omitempty"`
	ChannelSummary *ChannelSummary `json:"channelSummary,omitempty"`
}

// ChannelDetail holds the subject and membership of a conversation.
type ChannelDetail struct {
	DataType    string   `json:"dataType"`
	Data        string   `json:"data"`
	Created     int64    `json:"created"`
	Updated     int64    `json:"updated"`
	EnableImage bool     `json:"enableImage"`
	EnableAudio bool     `json:"enableAudio"`
	EnableVideo bool     `json:"enableVideo"`
	Members     []string `json:"members"`
}

// Subject extracts the display subject from the detail payload. Returns ""
// when the payload has no subject.
func (d *ChannelDetail) Subject() string {
	if d == nil || d.Data == "" {
		return ""
	}
	var v struct {
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal([]byte(d.Data), &v); err != nil {
		return ""
	}
	return v.Subject
}

// ChannelSummary is the last-message preview of a channel.
type ChannelSummary struct {
	LastTopic *TopicDetail `json:"lastTopic"`
}

// ChannelItem is the locally persisted snapshot of a channel. CardID is
// empty for channels hosted on the local account and set for channels
// reached through a contact.
//
// Invariant: SyncRevision never exceeds TopicRevision; the gap between them
// is exactly the set of topics not yet pulled.
type ChannelItem struct {
	CardID         string
	ChannelID      string
	Revision       int64
	DetailRevision int64
	TopicRevision  int64
	Detail         *ChannelDetail
	Summary        *ChannelSummary
	ReadRevision   int64
	SyncRevision   int64
	Blocked        bool
}

// Unread reports whether the channel has activity past the read marker.
// A revision exactly at the marker counts as read.
func (c *ChannelItem) Unread() bool {
	return c.TopicRevision > c.ReadRevision
}
