package tombstones

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Tombstone) error {
	query := `
		INSERT INTO deleted_records (ref, archivesspace_uri, deleted)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	uri := sql.NullString{String: t.ArchivesSpaceURI, Valid: t.ArchivesSpaceURI != ""}
	if err := r.db.QueryRowContext(ctx, query, t.Ref, uri, t.Deleted).Scan(&t.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListDeletedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Tombstone], error) {
	page := &models.Page[*models.Tombstone]{}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deleted_records WHERE deleted >= $1`, q.Since).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count tombstones: %w", err)
	}

	query := `
		SELECT id, ref, archivesspace_uri, deleted
		FROM deleted_records
		WHERE deleted >= $1
		ORDER BY deleted DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, q.Since, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select tombstones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &models.Tombstone{}
		var uri sql.NullString
		if err := rows.Scan(&t.ID, &t.Ref, &uri, &t.Deleted); err != nil {
			return nil, err
		}
		t.ArchivesSpaceURI = uri.String
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}
