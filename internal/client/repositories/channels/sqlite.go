package channels

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftsync/driftsync/internal/client/models"
	"github.com/driftsync/driftsync/internal/common"
	"github.com/driftsync/driftsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, item *models.ChannelItem) error {
	detail, err := encodeJSON(item.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode channel detail: %w", err)
	}
	summary, err := encodeJSON(item.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode channel summary: %w", err)
	}

	query := `INSERT INTO channels (card_id, channel_id, revision, detail_revision, topic_revision, detail, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(card_id, channel_id) DO UPDATE SET revision = excluded.revision,
				detail_revision = excluded.detail_revision,
				topic_revision = excluded.topic_revision,
				detail = excluded.detail,
				summary = excluded.summary
	`
	_, err = r.db.ExecContext(ctx, query,
		item.CardID, item.ChannelID, item.Revision, item.DetailRevision, item.TopicRevision, detail, summary)
	if err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	return r.setColumn(ctx, cardID, channelID, `UPDATE channels SET revision=? WHERE card_id=? AND channel_id=?`, revision)
}

func (r *SQLiteRepository) SetDetail(ctx context.Context, cardID, channelID string, detail *models.ChannelDetail, revision int64) error {
	b, err := encodeJSON(detail)
	if err != nil {
		return fmt.Errorf("failed to encode channel detail: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE channels SET detail=?, detail_revision=? WHERE card_id=? AND channel_id=?`,
		b, revision, cardID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set channel detail: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetSummary(ctx context.Context, cardID, channelID string, summary *models.ChannelSummary, revision int64) error {
	b, err := encodeJSON(summary)
	if err != nil {
		return fmt.Errorf("failed to encode channel summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE channels SET summary=?, topic_revision=? WHERE card_id=? AND channel_id=?`,
		b, revision, cardID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set channel summary: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetReadRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	return r.setColumn(ctx, cardID, channelID, `UPDATE channels SET read_revision=? WHERE card_id=? AND channel_id=?`, revision)
}

func (r *SQLiteRepository) SetSyncRevision(ctx context.Context, cardID, channelID string, revision int64) error {
	return r.setColumn(ctx, cardID, channelID, `UPDATE channels SET sync_revision=? WHERE card_id=? AND channel_id=?`, revision)
}

func (r *SQLiteRepository) SetBlocked(ctx context.Context, cardID, channelID string, blocked bool) error {
	return r.setColumn(ctx, cardID, channelID, `UPDATE channels SET blocked=? WHERE card_id=? AND channel_id=?`, blocked)
}

func (r *SQLiteRepository) Delete(ctx context.Context, cardID, channelID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE card_id=? AND channel_id=?`, cardID, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByCard(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE card_id=?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card channels: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, cardID, channelID string) (*models.ChannelItem, error) {
	row := r.db.QueryRowContext(ctx, selectChannels+` WHERE card_id=? AND channel_id=?`, cardID, channelID)
	item, err := scanChannel(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) GetByCard(ctx context.Context, cardID string) ([]models.ChannelItem, error) {
	return r.query(ctx, selectChannels+` WHERE card_id=?`, cardID)
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.ChannelItem, error) {
	return r.query(ctx, selectChannels)
}

const selectChannels = `SELECT card_id, channel_id, revision, detail_revision, topic_revision,
	detail, summary, read_revision, sync_revision, blocked FROM channels`

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.ChannelItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select channels: %w", err)
	}
	defer rows.Close()

	var result []models.ChannelItem
	for rows.Next() {
		item, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanChannel(scan func(dest ...any) error) (*models.ChannelItem, error) {
	var item models.ChannelItem
	var detail, summary sql.NullString
	err := scan(&item.CardID, &item.ChannelID, &item.Revision, &item.DetailRevision,
		&item.TopicRevision, &detail, &summary, &item.ReadRevision, &item.SyncRevision, &item.Blocked)
	if err != nil {
		return nil, err
	}
	if detail.Valid {
		item.Detail = &models.ChannelDetail{}
		if err := json.Unmarshal([]byte(detail.String), item.Detail); err != nil {
			return nil, fmt.Errorf("failed to decode channel detail: %w", err)
		}
	}
	if summary.Valid {
		item.Summary = &models.ChannelSummary{}
		if err := json.Unmarshal([]byte(summary.String), item.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode channel summary: %w", err)
		}
	}
	return &item, nil
}

func (r *SQLiteRepository) setColumn(ctx context.Context, cardID, channelID, query string, value any) error {
	res, err := r.db.ExecContext(ctx, query, value, cardID, channelID)
	if err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case *models.ChannelDetail:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *models.ChannelSummary:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
