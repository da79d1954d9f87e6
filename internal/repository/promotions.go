package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

const promotionColumns = `id, code, description, type, value, usage_limit, usage_count,
	start_date, end_date, min_order_value, max_discount, is_active, created_at`

// GetActivePromotionByCode возвращает активную промо-акцию по нормализованному коду.
func (r *PostgresRepository) GetActivePromotionByCode(ctx context.Context, code string) (*model.Promotion, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+promotionColumns+` FROM promotions WHERE code = $1 AND is_active`,
		code,
	)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// CreatePromotion сохраняет новую промо-акцию.
func (r *PostgresRepository) CreatePromotion(ctx context.Context, p *model.Promotion) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO promotions (code, description, type, value, usage_limit, start_date, end_date,
			min_order_value, max_discount, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, usage_count, created_at`,
		p.Code, p.Description, string(p.Type), model.ToMinor(p.Value), p.UsageLimit, p.StartDate, p.EndDate,
		model.ToMinorPtr(p.MinOrderValue), model.ToMinorPtr(p.MaxDiscount), p.IsActive,
	).Scan(&p.ID, &p.UsageCount, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrPromotionExists, p.Code)
		}
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

// ListPromotions возвращает все промо-акции, новые первыми.
func (r *PostgresRepository) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select promotions: %w", err)
	}
	defer rows.Close()

	var res []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// redeemPromotion атомарно увеличивает счётчик использований, если лимит и срок действия это позволяют.
func redeemPromotion(ctx context.Context, q querier, id int64, now time.Time) error {
	tag, err := q.Exec(ctx,
		`UPDATE promotions SET usage_count = usage_count + 1
		 WHERE id = $1
		   AND is_active
		   AND (usage_limit IS NULL OR usage_count < usage_limit)
		   AND (start_date IS NULL OR start_date <= $2)
		   AND (end_date IS NULL OR end_date >= $2)`,
		id, now,
	)
	if err != nil {
		return fmt.Errorf("redeem promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPromotionUnavailable
	}
	return nil
}

func releasePromotion(ctx context.Context, q querier, id int64) error {
	_, err := q.Exec(ctx,
		`UPDATE promotions SET usage_count = GREATEST(usage_count - 1, 0) WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("release promotion: %w", err)
	}
	return nil
}

func scanPromotion(row pgx.Row) (*model.Promotion, error) {
	var (
		p           model.Promotion
		typ         string
		value       int64
		minOrder    *int64
		maxDiscount *int64
	)
	err := row.Scan(&p.ID, &p.Code, &p.Description, &typ, &value, &p.UsageLimit, &p.UsageCount,
		&p.StartDate, &p.EndDate, &minOrder, &maxDiscount, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = model.PromotionType(typ)
	p.Value = model.FromMinor(value)
	p.MinOrderValue = model.FromMinorPtr(minOrder)
	p.MaxDiscount = model.FromMinorPtr(maxDiscount)
	return &p, nil
}
