package components

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/dbx"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

// PostgresRepository implements component storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectFrom = `
	SELECT c.id, c.title, c.archivesspace_uri, c.level, c.parent_id, c.map_id,
	       c.tree_index, c.child_count, m.publish, c.created, c.modified
	FROM components c
	JOIN maps m ON m.id = c.map_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanComponent(s scanner) (*models.Component, error) {
	c := &models.Component{}
	var uri sql.NullString
	if err := s.Scan(&c.ID, &c.Title, &uri, &c.Level, &c.ParentID, &c.MapID,
		&c.TreeIndex, &c.ChildCount, &c.Publish, &c.Created, &c.Modified); err != nil {
		return nil, err
	}
	c.ArchivesSpaceURI = uri.String
	return c, nil
}

func nullable(uri string) sql.NullString {
	return sql.NullString{String: uri, Valid: uri != ""}
}

// constraintError turns order and reference violations into field errors.
func constraintError(err error) error {
	name, unique, ok := dbx.ConstraintViolation(err)
	if !ok {
		return fmt.Errorf("db error: %w", err)
	}
	switch {
	case unique:
		return common.NewValidationError("order", "order index already used by a sibling")
	case strings.Contains(name, "parent"):
		return common.NewValidationError("parent", "parent component does not exist")
	case strings.Contains(name, "map"):
		return common.NewValidationError("map", "map does not exist")
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Component) error {
	query := `
		INSERT INTO components (title, archivesspace_uri, level, parent_id, map_id, tree_index, child_count, created, modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, c.Title, nullable(c.ArchivesSpaceURI), c.Level, c.ParentID,
		c.MapID, c.TreeIndex, c.ChildCount, c.Created, c.Modified).Scan(&c.ID)
	if err != nil {
		return constraintError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Component, error) {
	c, err := scanComponent(r.db.QueryRowContext(ctx, selectFrom+` WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("component %d: %w", id, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByMap(ctx context.Context, mapID int64) ([]*models.Component, error) {
	return r.list(ctx, selectFrom+` WHERE c.map_id = $1 ORDER BY c.tree_index, c.id`, mapID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Component, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select components: %w", err)
	}
	defer rows.Close()

	var result []*models.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Component) error {
	query := `
		UPDATE components
		SET title = $2, archivesspace_uri = $3, level = $4, parent_id = $5,
		    map_id = $6, tree_index = $7, modified = $8
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, c.ID, c.Title, nullable(c.ArchivesSpaceURI), c.Level,
		c.ParentID, c.MapID, c.TreeIndex, c.Modified)
	if err != nil {
		return constraintError(err)
	}
	return expectOne(res, c.ID)
}

func (r *PostgresRepository) UpdateChildCount(ctx context.Context, id, count int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE components SET child_count = $2, modified = $3 WHERE id = $1`, id, count, at)
	if err != nil {
		return fmt.Errorf("failed to update child count: %w", err)
	}
	return expectOne(res, id)
}

// DeleteSubtree removes the component and everything below it in one
// statement; parent references are checked once the statement completes.
func (r *PostgresRepository) DeleteSubtree(ctx context.Context, id int64) (int64, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM components WHERE id = $1
			UNION
			SELECT c.id FROM components c JOIN subtree s ON c.parent_id = s.id
		)
		DELETE FROM components WHERE id IN (SELECT id FROM subtree)
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete component: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("component %d: %w", id, common.ErrorNotFound)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteByMap(ctx context.Context, mapID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM components WHERE map_id = $1`, mapID); err != nil {
		return fmt.Errorf("failed to delete components: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListModifiedSince(ctx context.Context, q models.ListQuery) (*models.Page[*models.Component], error) {
	where := ` WHERE c.modified >= $1 AND ($2 = FALSE OR m.publish = TRUE)`

	page := &models.Page[*models.Component]{}
	countQuery := `SELECT COUNT(*) FROM components c JOIN maps m ON m.id = c.map_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, q.Since, q.PublishedOnly).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count components: %w", err)
	}

	items, err := r.list(ctx, selectFrom+where+` ORDER BY c.modified DESC, c.id DESC LIMIT $3 OFFSET $4`,
		q.Since, q.PublishedOnly, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return page, nil
}

func (r *PostgresRepository) FindByURI(ctx context.Context, uri string, publishedOnly bool) ([]*models.Component, error) {
	return r.list(ctx, selectFrom+` WHERE c.archivesspace_uri = $1 AND ($2 = FALSE OR m.publish = TRUE) ORDER BY c.id`,
		uri, publishedOnly)
}

func (r *PostgresRepository) SiblingIndexTaken(ctx context.Context, mapID int64, parentID *int64, index, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM components
			WHERE map_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND tree_index = $3 AND id <> $4
		)
	`
	var taken bool
	if err := r.db.QueryRowContext(ctx, query, mapID, parentID, index, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

func (r *PostgresRepository) NextTreeIndex(ctx context.Context, mapID int64) (int64, error) {
	var next int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(tree_index) + 1, 0) FROM components WHERE map_id = $1`, mapID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return next, nil
}

func (r *PostgresRepository) CountBefore(ctx context.Context, mapID, index int64) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(child_count), 0)
		FROM components
		WHERE map_id = $1 AND tree_index < $2
	`
	var preceding, objects int64
	if err := r.db.QueryRowContext(ctx, query, mapID, index).Scan(&preceding, &objects); err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return preceding, objects, nil
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
		return fmt.Errorf("component %d: %w", id, common.ErrorNotFound)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
