package records

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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertMap(ctx context.Context, m *models.Map) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO maps (id, title, publish, modified) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			publish = excluded.publish,
			modified = excluded.modified
	`, m.ID, m.Title, m.Publish, m.Modified.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert map %d: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpsertComponent(ctx context.Context, c *models.Component) error {
	var uri sql.NullString
	if c.ArchivesSpaceURI != "" {
		uri = sql.NullString{String: c.ArchivesSpaceURI, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO components (id, map_id, parent_id, title, level, archivesspace_uri, tree_index, child_count, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			map_id = excluded.map_id,
			parent_id = excluded.parent_id,
			title = excluded.title,
			level = excluded.level,
			archivesspace_uri = excluded.archivesspace_uri,
			tree_index = excluded.tree_index,
			child_count = excluded.child_count,
			modified = excluded.modified
	`, c.ID, c.MapID, c.ParentID, c.Title, c.Level, uri, c.TreeIndex, c.ChildCount, c.Modified.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert component %d: %w", c.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteMap(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM components WHERE map_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete components of map %d: %w", id, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete map %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteComponent(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete component %d: %w", id, err)
	}
	return nil
}

const componentColumns = `id, map_id, parent_id, title, level, archivesspace_uri, tree_index, child_count, modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComponent(row rowScanner) (*models.Component, error) {
	var (
		c        models.Component
		parent   sql.NullInt64
		uri      sql.NullString
		modified int64
	)
	if err := row.Scan(&c.ID, &c.MapID, &parent, &c.Title, &c.Level, &uri, &c.TreeIndex, &c.ChildCount, &modified); err != nil {
		return nil, err
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	c.ArchivesSpaceURI = uri.String
	c.Modified = time.Unix(modified, 0).UTC()
	return &c, nil
}

func (r *SQLiteRepository) GetComponent(ctx context.Context, id int64) (*models.Component, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	c, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get component %d: %w", id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListComponents(ctx context.Context, mapID int64) ([]*models.Component, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+componentColumns+` FROM components WHERE map_id = ? ORDER BY tree_index, id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	defer rows.Close()

	var out []*models.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate component rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (int64, int64, error) {
	var maps, components int64
	err := r.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM maps), (SELECT COUNT(*) FROM components)`).Scan(&maps, &components)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return maps, components, nil
}
