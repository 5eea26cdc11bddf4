package models

// TopicStatus tracks the confirmation state of a message.
type TopicStatus string

const (
	TopicUnconfirmed TopicStatus = "unconfirmed"
	TopicConfirmed   TopicStatus = "confirmed"
)

// TopicDelta is one record of a topic collection range scan. A nil Data is a
// tombstone.
type TopicDelta struct {
	ID       string     `json:"id"`
	Revision int64      `json:"revision"`
	Data     *TopicData `json:"data"`
}

// TopicData carries the topic's detail revision plus, when inlined, the full
// detail payload.
type TopicData struct {
	DetailRevision int64        `json:"detailRevision"`
	TopicDetail    *TopicDetail `json:"topicDetail,omitempty"`
}

// TopicDetail is the message payload.
type TopicDetail struct {
	GUID      string      `json:"guid"`
	DataType  string      `json:"dataType"`
	Data      string      `json:"data"`
	Created   int64       `json:"created"`
	Updated   int64       `json:"updated"`
	Status    TopicStatus `json:"status"`
	Transform string      `json:"transform,omitempty"`
}

// TopicBatch is the response of a topic range scan: the ordered delta set
// plus the collection revision the batch brings the caller up to.
type TopicBatch struct {
	Topics   []TopicDelta `json:"topics"`
	Revision int64        `json:"revision"`
}

// TopicItem is the locally persisted snapshot of a topic.
type TopicItem struct {
	TopicID        string
	Revision       int64
	DetailRevision int64
	Detail         *TopicDetail
	Blocked        bool
}
