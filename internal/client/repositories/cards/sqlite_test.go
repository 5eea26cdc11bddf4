package cards

import (
	"context"
	"database/sql"
	"testing"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE cards (
  card_id          TEXT PRIMARY KEY,
  revision         INTEGER NOT NULL DEFAULT 0,
  detail_revision  INTEGER NOT NULL DEFAULT 0,
  profile_revision INTEGER NOT NULL DEFAULT 0,
  detail           TEXT,
  profile          TEXT,
  notified_view    INTEGER NOT NULL DEFAULT 0,
  notified_profile INTEGER NOT NULL DEFAULT 0,
  notified_article INTEGER NOT NULL DEFAULT 0,
  notified_channel INTEGER NOT NULL DEFAULT 0,
  blocked          INTEGER NOT NULL DEFAULT 0,
  offsync          INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return db
}

func sampleCard(id string) *models.CardItem {
	return &models.CardItem{
		CardID:          id,
		Revision:        3,
		DetailRevision:  2,
		ProfileRevision: 1,
		Detail:          &models.CardDetail{Status: models.CardConnected, Token: "tok"},
		Profile:         &models.CardProfile{GUID: "guid-" + id, Handle: "alice", Node: "node.example"},
	}
}

func TestUpsert_InsertAndGet(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sampleCard("c1")))

	got, err := r.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Revision)
	assert.Equal(t, models.CardConnected, got.Detail.Status)
	assert.Equal(t, "alice", got.Profile.Handle)
}

func TestUpsert_PreservesNotifiedWatermarks(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sampleCard("c1")))
	require.NoError(t, r.SetNotifiedView(ctx, "c1", 7))
	require.NoError(t, r.SetNotifiedChannel(ctx, "c1", 9))
	require.NoError(t, r.SetOffsync(ctx, "c1", true))

	// a later fold replaces the synced fields only
	updated := sampleCard("c1")
	updated.Revision = 5
	require.NoError(t, r.Upsert(ctx, updated))

	got, err := r.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Revision)
	assert.Equal(t, int64(7), got.NotifiedView)
	assert.Equal(t, int64(9), got.NotifiedChannel)
	assert.True(t, got.Offsync)
}

func TestSetDetail_And_SetProfile(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sampleCard("c1")))

	detail := &models.CardDetail{Status: models.CardConfirmed}
	require.NoError(t, r.SetDetail(ctx, "c1", detail, 10))

	profile := &models.CardProfile{GUID: "guid-c1", Handle: "bob", Node: "other.example"}
	require.NoError(t, r.SetProfile(ctx, "c1", profile, 11))

	got, err := r.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CardConfirmed, got.Detail.Status)
	assert.Equal(t, int64(10), got.DetailRevision)
	assert.Equal(t, "bob", got.Profile.Handle)
	assert.Equal(t, int64(11), got.ProfileRevision)
}

func TestSetters_MissingCard(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	err := r.SetRevision(ctx, "nope", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = r.SetNotifiedProfile(ctx, "nope", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_And_GetAll(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, sampleCard("c1")))
	require.NoError(t, r.Upsert(ctx, sampleCard("c2")))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.Delete(ctx, "c1"))
	_, err = r.Get(ctx, "c1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err = r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
