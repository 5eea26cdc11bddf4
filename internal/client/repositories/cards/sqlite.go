package cards

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

func (r *SQLiteRepository) Upsert(ctx context.Context, item *models.CardItem) error {
	detail, err := marshalNullable(item.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode card detail: %w", err)
	}
	profile, err := marshalNullable(item.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode card profile: %w", err)
	}

	query := `INSERT INTO cards (card_id, revision, detail_revision, profile_revision, detail, profile)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(card_id) DO UPDATE SET revision = excluded.revision,
				detail_revision = excluded.detail_revision,
				profile_revision = excluded.profile_revision,
				detail = excluded.detail,
				profile = excluded.profile
	`
	_, err = r.db.ExecContext(ctx, query,
		item.CardID, item.Revision, item.DetailRevision, item.ProfileRevision, detail, profile)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetRevision(ctx context.Context, cardID string, revision int64) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET revision=? WHERE card_id=?`, revision)
}

func (r *SQLiteRepository) SetDetail(ctx context.Context, cardID string, detail *models.CardDetail, revision int64) error {
	b, err := marshalNullable(detail)
	if err != nil {
		return fmt.Errorf("failed to encode card detail: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE cards SET detail=?, detail_revision=? WHERE card_id=?`, b, revision, cardID)
	if err != nil {
		return fmt.Errorf("failed to set card detail: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetProfile(ctx context.Context, cardID string, profile *models.CardProfile, revision int64) error {
	b, err := marshalNullable(profile)
	if err != nil {
		return fmt.Errorf("failed to encode card profile: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE cards SET profile=?, profile_revision=? WHERE card_id=?`, b, revision, cardID)
	if err != nil {
		return fmt.Errorf("failed to set card profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetNotifiedView(ctx context.Context, cardID string, revision int64) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET notified_view=? WHERE card_id=?`, revision)
}

func (r *SQLiteRepository) SetNotifiedProfile(ctx context.Context, cardID string, revision int64) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET notified_profile=? WHERE card_id=?`, revision)
}

func (r *SQLiteRepository) SetNotifiedArticle(ctx context.Context, cardID string, revision int64) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET notified_article=? WHERE card_id=?`, revision)
}

func (r *SQLiteRepository) SetNotifiedChannel(ctx context.Context, cardID string, revision int64) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET notified_channel=? WHERE card_id=?`, revision)
}

func (r *SQLiteRepository) SetOffsync(ctx context.Context, cardID string, offsync bool) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET offsync=? WHERE card_id=?`, offsync)
}

func (r *SQLiteRepository) SetBlocked(ctx context.Context, cardID string, blocked bool) error {
	return r.setColumn(ctx, cardID, `UPDATE cards SET blocked=? WHERE card_id=?`, blocked)
}

func (r *SQLiteRepository) Delete(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE card_id=?`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, cardID string) (*models.CardItem, error) {
	row := r.db.QueryRowContext(ctx, selectCards+` WHERE card_id=?`, cardID)
	item, err := scanCard(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.CardItem, error) {
	rows, err := r.db.QueryContext(ctx, selectCards)
	if err != nil {
		return nil, fmt.Errorf("failed to select cards: %w", err)
	}
	defer rows.Close()

	var result []models.CardItem
	for rows.Next() {
		item, err := scanCard(rows.Scan)
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

const selectCards = `SELECT card_id, revision, detail_revision, profile_revision, detail, profile,
	notified_view, notified_profile, notified_article, notified_channel, blocked, offsync FROM cards`

func scanCard(scan func(dest ...any) error) (*models.CardItem, error) {
	var item models.CardItem
	var detail, profile sql.NullString
	err := scan(&item.CardID, &item.Revision, &item.DetailRevision, &item.ProfileRevision,
		&detail, &profile, &item.NotifiedView, &item.NotifiedProfile, &item.NotifiedArticle,
		&item.NotifiedChannel, &item.Blocked, &item.Offsync)
	if err != nil {
		return nil, err
	}
	if err := unmarshalNullable(detail, &item.Detail); err != nil {
		return nil, fmt.Errorf("failed to decode card detail: %w", err)
	}
	if err := unmarshalNullable(profile, &item.Profile); err != nil {
		return nil, fmt.Errorf("failed to decode card profile: %w", err)
	}
	return &item, nil
}

func (r *SQLiteRepository) setColumn(ctx context.Context, cardID, query string, value any) error {
	res, err := r.db.ExecContext(ctx, query, value, cardID)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
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

func marshalNullable(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case *models.CardDetail:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *models.CardProfile:
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

func unmarshalNullable[T any](s sql.NullString, out **T) error {
	if !s.Valid {
		*out = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(s.String), v); err != nil {
		return err
	}
	*out = v
	return nil
}
