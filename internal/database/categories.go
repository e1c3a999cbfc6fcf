package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, description, icon, color, parent_id, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Icon,
		&c.Color,
		&c.ParentID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

type CreateCategoryParams struct {
	Name        string
	Description pgtype.Text
	Icon        pgtype.Text
	Color       pgtype.Text
	ParentID    pgtype.UUID
}

const createCategory = `
INSERT INTO categories (name, description, icon, color, parent_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + categoryColumns

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory,
		arg.Name,
		arg.Description,
		arg.Icon,
		arg.Color,
		arg.ParentID,
	)
	return scanCategory(row)
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategory, id))
}

type ListCategoriesParams struct {
	Search pgtype.Text
	Limit  int32
	Offset int32
}

const listCategories = `
SELECT ` + categoryColumns + `
FROM categories
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2 OFFSET $3`

func (q *Queries) ListCategories(ctx context.Context, arg ListCategoriesParams) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const countCategories = `
SELECT count(*) FROM categories
WHERE ($1::text IS NULL OR name ILIKE '%' || $1 || '%')`

func (q *Queries) CountCategories(ctx context.Context, search pgtype.Text) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countCategories, search).Scan(&total)
	return total, err
}

type UpdateCategoryParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Icon        pgtype.Text
	Color       pgtype.Text
	ParentID    pgtype.UUID
}

const updateCategory = `
UPDATE categories
SET name = $2, description = $3, icon = $4, color = $5, parent_id = $6, updated_at = now()
WHERE id = $1
RETURNING ` + categoryColumns

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Icon,
		arg.Color,
		arg.ParentID,
	)
	return scanCategory(row)
}

const deleteCategory = `DELETE FROM categories WHERE id = $1 RETURNING id`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteCategory, id).Scan(&deleted)
	return deleted, err
}

const countProductsInCategory = `SELECT count(*) FROM products WHERE category_id = $1`

func (q *Queries) CountProductsInCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countProductsInCategory, categoryID).Scan(&total)
	return total, err
}
