package models

// Access is the session credential issued at login: the account guid, the
// home node, and the opaque bearer token used on every call.
type Access struct {
	GUID     string `json:"guid"`
	Server   string `json:"server"`
	AppToken string `json:"appToken"`
}

// AccountStatus is the account-level state fetched when the account
// revision moves.
type AccountStatus struct {
	Disabled         bool  `json:"disabled"`
	StorageUsed      int64 `json:"storageUsed"`
	StorageAvailable int64 `json:"storageAvailable"`
	Searchable       bool  `json:"searchable"`
}

// Profile is the local user's own display identity.
type Profile struct {
	GUID        string `json:"guid"`
	Handle      string `json:"handle"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	ImageSet    bool   `json:"imageSet"`
	Revision    int64  `json:"revision"`
	Node        string `json:"node"`
}

// ProfileData is the mutable subset of the profile sent on self edits.
type ProfileData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// GroupDelta is one record of the group collection range scan.
type GroupDelta struct {
	ID       string     `json:"id"`
	Revision int64      `json:"revision"`
	Data     *GroupData `json:"data"`
}

// GroupData is the group payload.
type GroupData struct {
	DataType string `json:"dataType"`
	Data     string `json:"data"`
	Created  int64  `json:"created"`
	Updated  int64  `json:"updated"`
}
