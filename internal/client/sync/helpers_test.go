package sync

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/client/store"
	"github.com/driftsync/driftsync/internal/logging"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// one connection, or every pool member gets its own empty memory db
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.RunMigrations(context.Background(), db))
	return store.New(db)
}

func inlineChannelDelta(id string, revision int64) models.ChannelDelta {
	return models.ChannelDelta{
		ID:       id,
		Revision: revision,
		Data: &models.ChannelData{
			DetailRevision: 1,
			TopicRevision:  1,
			ChannelDetail:  &models.ChannelDetail{Data: `{"subject":"` + id + `"}`},
			ChannelSummary: &models.ChannelSummary{LastTopic: &models.TopicDetail{Data: "hi"}},
		},
	}
}

func inlineTopicDelta(id string, revision, created int64) models.TopicDelta {
	return models.TopicDelta{
		ID:       id,
		Revision: revision,
		Data: &models.TopicData{
			DetailRevision: 1,
			TopicDetail: &models.TopicDetail{
				GUID:    "guid-" + id,
				Data:    `{"text":"` + id + `"}`,
				Created: created,
				Status:  models.TopicConfirmed,
			},
		},
	}
}
