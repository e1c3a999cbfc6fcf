package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, barcode, description, category_id, price, cost_price, unit, image_url, stock_quantity, min_stock_level, max_stock_level, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Barcode,
		&p.Description,
		&p.CategoryID,
		&p.Price,
		&p.CostPrice,
		&p.Unit,
		&p.ImageUrl,
		&p.StockQuantity,
		&p.MinStockLevel,
		&p.MaxStockLevel,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

type CreateProductParams struct {
	Name          string
	Barcode       string
	Description   pgtype.Text
	CategoryID    pgtype.UUID
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	Unit          pgtype.Text
	ImageUrl      pgtype.Text
	StockQuantity int32
	MinStockLevel int32
	MaxStockLevel int32
	IsActive      bool
}

const createProduct = `
INSERT INTO products (name, barcode, description, category_id, price, cost_price, unit, image_url, stock_quantity, min_stock_level, max_stock_level, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.Name,
		arg.Barcode,
		arg.Description,
		arg.CategoryID,
		arg.Price,
		arg.CostPrice,
		arg.Unit,
		arg.ImageUrl,
		arg.StockQuantity,
		arg.MinStockLevel,
		arg.MaxStockLevel,
		arg.IsActive,
	)
	return scanProduct(row)
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const getProductByBarcode = `SELECT ` + productColumns + ` FROM products WHERE barcode = $1`

func (q *Queries) GetProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByBarcode, barcode))
}

type ListProductsParams struct {
	CategoryID pgtype.UUID
	Search     pgtype.Text
	Limit      int32
	Offset     int32
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE ($1::uuid IS NULL OR category_id = $1)
  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
ORDER BY name
LIMIT $3 OFFSET $4`

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.CategoryID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type CountProductsParams struct {
	CategoryID pgtype.UUID
	Search     pgtype.Text
}

const countProducts = `
SELECT count(*)
FROM products
WHERE ($1::uuid IS NULL OR category_id = $1)
  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')`

func (q *Queries) CountProducts(ctx context.Context, arg CountProductsParams) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countProducts, arg.CategoryID, arg.Search).Scan(&total)
	return total, err
}

type UpdateProductParams struct {
	ID            uuid.UUID
	Name          string
	Barcode       string
	Description   pgtype.Text
	CategoryID    pgtype.UUID
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	Unit          pgtype.Text
	ImageUrl      pgtype.Text
	StockQuantity int32
	MinStockLevel int32
	MaxStockLevel int32
	IsActive      bool
}

const updateProduct = `
UPDATE products
SET name = $2, barcode = $3, description = $4, category_id = $5, price = $6, cost_price = $7,
    unit = $8, image_url = $9, stock_quantity = $10, min_stock_level = $11, max_stock_level = $12,
    is_active = $13, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.Name,
		arg.Barcode,
		arg.Description,
		arg.CategoryID,
		arg.Price,
		arg.CostPrice,
		arg.Unit,
		arg.ImageUrl,
		arg.StockQuantity,
		arg.MinStockLevel,
		arg.MaxStockLevel,
		arg.IsActive,
	)
	return scanProduct(row)
}

const deleteProduct = `DELETE FROM products WHERE id = $1 RETURNING id`

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteProduct, id).Scan(&deleted)
	return deleted, err
}

// AdjustProductStockParams applies a signed delta to stock_quantity in a
// single atomic update. There is no lower bound: stock may go negative under
// concurrent completions exceeding available stock.
type AdjustProductStockParams struct {
	ID    uuid.UUID
	Delta int32
}

const adjustProductStock = `
UPDATE products
SET stock_quantity = stock_quantity + $2, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, adjustProductStock, arg.ID, arg.Delta))
}

// BatchUpdateProductParams updates only the price/stock/active fields touched
// by the batch endpoint; nil pointers leave the column unchanged.
type BatchUpdateProductParams struct {
	ID            uuid.UUID
	StockQuantity *int32
	Price         pgtype.Numeric
	CostPrice     pgtype.Numeric
	IsActive      *bool
}

const batchUpdateProduct = `
UPDATE products
SET stock_quantity = coalesce($2, stock_quantity),
    price = coalesce($3, price),
    cost_price = coalesce($4, cost_price),
    is_active = coalesce($5, is_active),
    updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

func (q *Queries) BatchUpdateProduct(ctx context.Context, arg BatchUpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, batchUpdateProduct,
		arg.ID,
		arg.StockQuantity,
		arg.Price,
		arg.CostPrice,
		arg.IsActive,
	))
}
