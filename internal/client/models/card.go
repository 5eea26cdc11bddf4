package models

// CardStatus is the connection state of a contact relationship.
type CardStatus string

const (
	CardPending    CardStatus = "pending"
	CardRequested  CardStatus = "requested"
	CardConnecting CardStatus = "connecting"
	CardConnected  CardStatus = "connected"
	CardConfirmed  CardStatus = "confirmed"
	CardDisabled   CardStatus = "disabled"
)

// CardDelta is one record of a card collection range scan. A nil Data is a
// tombstone: the card and everything nested under it is gone.
type CardDelta struct {
	ID       string    `json:"id"`
	Revision int64     `json:"revision"`
	Data     *CardData `json:"data"`
}

// CardData carries the per-field revisions of a card plus, when the server
// inlines them, the full detail and profile payloads. Detail and profile are
// independently revisioned; either pointer may be nil in a summary-only
// record.
type CardData struct {
	DetailRevision  int64 `json:"detailRevision"`
	ProfileRevision int64 `json:"profileRevision"`
	NotifiedView    int64 `json:"notifiedView"`
	NotifiedProfile int64 `json:"notifiedProfile"`
	NotifiedArticle int64 `json:"notifiedArticle"`
	NotifiedChannel int64 `json:"notifiedChannel"`

	CardDetail  *CardDetail  `json:"cardDetail,omitempty"`
	CardProfile *CardProfile `json:"cardProfile,omitempty"`
}

// CardDetail is the connection state of the relationship, including the
// shared secret used to reach the contact's node.
type CardDetail struct {
	Status        CardStatus `json:"status"`
	Token         string     `json:"token"`
	StatusUpdated int64      `json:"statusUpdated"`
}

// CardProfile is the contact's display identity as last synced from their
// node.
type CardProfile struct {
	GUID        string `json:"guid"`
	Handle      string `json:"handle"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	ImageSet    bool   `json:"imageSet"`
	Node        string `json:"node"`
}

// ConnectResult is the peer node's response to an open message: the shared
// secret for future contact calls plus the revision baseline of the
// collections the peer exposes to us.
type ConnectResult struct {
	Token           string `json:"token"`
	ProfileRevision int64  `json:"profileRevision"`
	ArticleRevision int64  `json:"articleRevision"`
	ChannelRevision int64  `json:"channelRevision"`
	ViewRevision    int64  `json:"viewRevision"`
}

// CardItem is the locally persisted snapshot of a card. The Notified*
// watermarks record how far the cascade into the contact's remote
// collections has progressed; they advance only after a successful cascade,
// never on plain delta folds.
type CardItem struct {
	CardID          string
	Revision        int64
	DetailRevision  int64
	ProfileRevision int64
	Detail          *CardDetail
	Profile         *CardProfile
	NotifiedView    int64
	NotifiedProfile int64
	NotifiedArticle int64
	NotifiedChannel int64
	Blocked         bool
	Offsync         bool
}

// Destination returns the peer node address for a connected card. The second
// return is false when the card has no usable endpoint (missing profile,
// missing token, or not connected).
func (c *CardItem) Destination() (Destination, bool) {
	if c.Detail == nil || c.Profile == nil {
		return Destination{}, false
	}
	if c.Detail.Status != CardConnected || c.Detail.Token == "" || c.Profile.Node == "" {
		return Destination{}, false
	}
	return Destination{
		Node:  c.Profile.Node,
		Token: c.Profile.GUID + "." + c.Detail.Token,
	}, true
}
