package maps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// PostgresRepository implements map storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, title, publish, created, modified`

func (r *PostgresRepository) Create(ctx context.Context, m *models.Map) error {
	query := `
		INSERT INTO maps (title, publish, created, modified)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, m.Title, m.Publish, m.Created, m.Modified).Scan(&m.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Map, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM maps WHERE id = $1`, id)
}

func (r *PostgresRepository) LockByID(ctx context.Context, id int64) (*models.Map, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM maps WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, id int64) (*models.Map, error) {
	m := &models.Map{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Title, &m.Publish, &m.Created, &m.Modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("map %d: %w", id, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, m *models.Map) error {
	query := `UPDATE maps SET title = $2, publish = $3, modified = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, m.ID, m.Title, m.Publish, m.Modified)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, m.ID)
}

func (r *PostgresRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE maps SET modified = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch map: %w", err)
	}
	return expectOne(res, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM maps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete map: %w", err)
	}
	return expectOne(res, id)
}

func (r *PostgresRepository) ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Map], error) {
	where := `WHERE modified >= $1 AND ($2 = FALSE OR publish = TRUE)`

	page := &models.Page[*models.Map]{}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps `+where, q.Since, q.PublishedOnly).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count maps: %w", err)
	}

	query := `SELECT ` + selectColumns + ` FROM maps ` + where + `
		ORDER BY modified DESC, id DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, q.Since, q.PublishedOnly, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select maps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &models.Map{}
		if err := rows.Scan(&m.ID, &m.Title, &m.Publish, &m.Created, &m.Modified); err != nil {
			return nil, err
		}
		page.Items = append(page.Items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("map %d: %w", id, common.ErrorNotFound)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
