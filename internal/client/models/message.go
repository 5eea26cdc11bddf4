package models

// Message is the outbound topic payload before it is serialized into a
// TopicDetail. Assets are attached after upload completes, before the
// subject write confirms the topic.
type Message struct {
	Text   string     `json:"text"`
	Assets []AssetRef `json:"assets,omitempty"`
}

// AssetRef references an uploaded asset by the ids the node assigned to its
// transforms.
type AssetRef struct {
	Type  string `json:"type"`
	Thumb string `json:"thumb,omitempty"`
	Full  string `json:"full"`
	Label string `json:"label,omitempty"`
}

// AssetMeta describes one server-side transform of an uploaded asset.
type AssetMeta struct {
	AssetID   string `json:"assetId"`
	Transform string `json:"transform"`
	Status    string `json:"status"`
}
