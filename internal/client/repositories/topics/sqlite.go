package topics

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *SQLiteRepository) Upsert(ctx context.Context, cardID, channelID string, item *models.TopicItem) error {
	var detail sql.NullString
	if item.Detail != nil {
		b, err := json.Marshal(item.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode topic detail: %w", err)
		}
		detail = sql.NullString{String: string(b), Valid: true}
	}

	query := `INSERT INTO topics (card_id, channel_id, topic_id, revision, detail_revision, detail)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(card_id, channel_id, topic_id) DO UPDATE SET revision = excluded.revision,
				detail_revision = excluded.detail_revision,
				detail = excluded.detail
	`
	_, err := r.db.ExecContext(ctx, query,
		cardID, channelID, item.TopicID, item.Revision, item.DetailRevision, detail)
	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetBlocked(ctx context.Context, cardID, channelID, topicID string, blocked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE topics SET blocked=? WHERE card_id=? AND channel_id=? AND topic_id=?`,
		blocked, cardID, channelID, topicID)
	if err != nil {
		return fmt.Errorf("failed to set topic blocked: %w", err)
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

func (r *SQLiteRepository) Delete(ctx context.Context, cardID, channelID, topicID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM topics WHERE card_id=? AND channel_id=? AND topic_id=?`, cardID, channelID, topicID)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByChannel(ctx context.Context, cardID, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM topics WHERE card_id=? AND channel_id=?`, cardID, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete channel topics: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByCard(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE card_id=?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card topics: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByChannel(ctx context.Context, cardID, channelID string) ([]models.TopicItem, error) {
	query := `SELECT topic_id, revision, detail_revision, detail, blocked
			FROM topics WHERE card_id=? AND channel_id=?`
	rows, err := r.db.QueryContext(ctx, query, cardID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to select topics: %w", err)
	}
	defer rows.Close()

	var result []models.TopicItem
	for rows.Next() {
		var item models.TopicItem
		var detail sql.NullString
		if err := rows.Scan(&item.TopicID, &item.Revision, &item.DetailRevision, &detail, &item.Blocked); err != nil {
			return nil, err
		}
		if detail.Valid {
			item.Detail = &models.TopicDetail{}
			if err := json.Unmarshal([]byte(detail.String), item.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode topic detail: %w", err)
			}
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
