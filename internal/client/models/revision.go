// Package models defines client-side data models for the driftsync replica:
// wire-level delta records, entity snapshots, and the push revision vector.
package models

// Revision is the per-collection revision vector pushed over the status
// websocket. Each field is a monotonically increasing counter marking the
// last server-side mutation of that collection.
type Revision struct {
	Account int64 `json:"account"`
	Profile int64 `json:"profile"`
	Group   int64 `json:"group"`
	Card    int64 `json:"card"`
	Channel int64 `json:"channel"`
}

// Destination addresses a peer node on behalf of a contact: the node host
// plus the composite contact token (guid.token).
type Destination struct {
	Node  string
	Token string
}
