// Package cursors persists collection watermarks and small session state as
// key/value pairs. Cursors are reloaded verbatim on session resume so a
// restart never forces a full resync.
package cursors

import "context"

// Well-known cursor keys.
const (
	KeyAccountRevision = "account.revision"
	KeyProfileRevision = "profile.revision"
	KeyGroupRevision   = "group.revision"
	KeyCardRevision    = "card.revision"
	KeyChannelRevision = "channel.revision"
	KeySession         = "session.access"
	KeyAccountStatus   = "account.status"
	KeyProfileData     = "profile.data"
	KeyGroups          = "group.items"
)

// Repository stores cursor values. Get returns nil (not an error) for a
// missing key; GetRevision returns 0.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	GetRevision(ctx context.Context, key string) (int64, error)
	SetRevision(ctx context.Context, key string, revision int64) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
