package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/samshop/internal/model"
)

const productColumns = `id::text, name, description, price, category, image_url, stock, is_active, created_at, updated_at`

// ListProducts возвращает активные товары, новые первыми. Категория All или пустая строка снимают фильтр.
func (r *PostgresRepository) ListProducts(ctx context.Context, category model.Category) ([]model.Product, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if category == "" || category == model.CategoryAll {
		rows, err = r.pool.Query(ctx,
			`SELECT `+productColumns+`
			 FROM products
			 WHERE is_active
			 ORDER BY created_at DESC`,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT `+productColumns+`
			 FROM products
			 WHERE is_active AND category = $1
			 ORDER BY created_at DESC`,
			string(category),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	return collectProducts(rows)
}

// FindProductsByIDs возвращает активные товары из списка идентификаторов одним запросом.
// Некорректные и неизвестные идентификаторы в результат не попадают.
func (r *PostgresRepository) FindProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			valid = append(valid, u.String())
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE is_active AND id = ANY($1::uuid[])`,
		valid,
	)
	if err != nil {
		return nil, fmt.Errorf("select products by ids: %w", err)
	}

	return collectProducts(rows)
}

// CreateProduct сохраняет новый товар и возвращает его с присвоенным идентификатором.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, price, category, image_url, stock, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id::text, created_at, updated_at`,
		p.Name, p.Description, p.Price, string(p.Category), p.ImageURL, p.Stock, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]model.Product, error) {
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var (
			p        model.Product
			category string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &category,
			&p.ImageURL, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Category = model.Category(category)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
