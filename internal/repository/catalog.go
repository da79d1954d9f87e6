package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

// GetProduct возвращает товар вместе с вариантами.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	products, err := r.GetProductsByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p, ok := products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// GetProductsByIDs возвращает товары с вариантами, проиндексированные по идентификатору.
// Отсутствующие идентификаторы просто не попадают в результат.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error) {
	res := make(map[int64]*model.Product, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, slug, price, sale_price, stock, is_active
		 FROM products
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         model.Product
			price     int64
			salePrice *int64
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &price, &salePrice, &p.Stock, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Price = model.FromMinor(price)
		p.SalePrice = model.FromMinorPtr(salePrice)
		res[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	vrows, err := r.pool.Query(ctx,
		`SELECT id, product_id, name, sku, stock, price
		 FROM product_variants
		 WHERE product_id = ANY($1)
		 ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			v     model.Variant
			price *int64
		)
		if err := vrows.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Stock, &price); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		v.Price = model.FromMinorPtr(price)
		if p, ok := res[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// StockChange описывает изменение остатка товара или его варианта.
type StockChange struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

// DecrementStock атомарно уменьшает остаток, только если его хватает.
// При недостатке остаток не меняется и возвращается ErrInsufficientStock.
func (r *PostgresRepository) DecrementStock(ctx context.Context, ch StockChange) (int, error) {
	var stock int
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		stock, err = decrementStock(ctx, tx, ch)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	return stock, err
}

// IncrementStock увеличивает остаток товара или варианта.
func (r *PostgresRepository) IncrementStock(ctx context.Context, ch StockChange) (int, error) {
	var stock int
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		stock, err = incrementStock(ctx, tx, ch)
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	return stock, err
}

// SetStock задаёт остаток товара или варианта.
func (r *PostgresRepository) SetStock(ctx context.Context, productID int64, variantID *int64, value int) (int, error) {
	var (
		stock int
		err   error
	)
	if variantID != nil {
		err = r.pool.QueryRow(ctx,
			`UPDATE product_variants SET stock = $3 WHERE id = $2 AND product_id = $1 RETURNING stock`,
			productID, *variantID, value,
		).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVariantNotFound
		}
	} else {
		err = r.pool.QueryRow(ctx,
			`UPDATE products SET stock = $2, updated_at = now() WHERE id = $1 RETURNING stock`,
			productID, value,
		).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
	}
	if err != nil {
		return 0, fmt.Errorf("set stock: %w", err)
	}
	return stock, nil
}

// decrementStock списывает остаток варианта (если указан) и товара одним условным обновлением на строку.
func decrementStock(ctx context.Context, q querier, ch StockChange) (int, error) {
	if ch.VariantID != nil {
		var vs int
		err := q.QueryRow(ctx,
			`UPDATE product_variants SET stock = stock - $3
			 WHERE id = $2 AND product_id = $1 AND stock >= $3
			 RETURNING stock`,
			ch.ProductID, *ch.VariantID, ch.Quantity,
		).Scan(&vs)
		if errors.Is(err, pgx.ErrNoRows) {
			if err := variantExists(ctx, q, ch.ProductID, *ch.VariantID); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("%w: product %d variant %d", ErrInsufficientStock, ch.ProductID, *ch.VariantID)
		}
		if err != nil {
			return 0, fmt.Errorf("decrement variant stock: %w", err)
		}
	}

	var stock int
	err := q.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2
		 RETURNING stock`,
		ch.ProductID, ch.Quantity,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := productExists(ctx, q, ch.ProductID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: product %d", ErrInsufficientStock, ch.ProductID)
	}
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return stock, nil
}

func incrementStock(ctx context.Context, q querier, ch StockChange) (int, error) {
	if ch.VariantID != nil {
		tag, err := q.Exec(ctx,
			`UPDATE product_variants SET stock = stock + $3 WHERE id = $2 AND product_id = $1`,
			ch.ProductID, *ch.VariantID, ch.Quantity,
		)
		if err != nil {
			return 0, fmt.Errorf("increment variant stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return 0, ErrVariantNotFound
		}
	}

	var stock int
	err := q.QueryRow(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1 RETURNING stock`,
		ch.ProductID, ch.Quantity,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return stock, nil
}

func productExists(ctx context.Context, q querier, id int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return ErrProductNotFound
	}
	return nil
}

func variantExists(ctx context.Context, q querier, productID, variantID int64) error {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_variants WHERE id = $2 AND product_id = $1)`,
		productID, variantID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check variant: %w", err)
	}
	if !exists {
		return ErrVariantNotFound
	}
	return nil
}
