package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/promotion"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
	"github.com/idyWilliams/nadinekollections-sub000/internal/validation"
)

// ValidatePromotion проверяет промокод для суммы заказа и рассчитывает скидку. Использование не списывается.
func (s *Service) ValidatePromotion(ctx context.Context, code string, orderTotal decimal.Decimal) (promotion.Result, error) {
	res, err := s.validatePromotion(ctx, code, orderTotal)
	s.metrics.PromotionValidations.WithLabelValues(validationResult(err)).Inc()
	return res, err
}

func (s *Service) validatePromotion(ctx context.Context, code string, orderTotal decimal.Decimal) (promotion.Result, error) {
	code = promotion.NormalizeCode(code)
	if code == "" {
		return promotion.Result{}, promotion.ErrNotFound
	}

	p, err := s.repo.GetActivePromotionByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrPromotionNotFound) {
			return promotion.Result{}, promotion.ErrNotFound
		}
		return promotion.Result{}, err
	}

	return promotion.Evaluate(p, orderTotal, s.now())
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, promotion.ErrNotFound):
		return "not_found"
	case errors.Is(err, promotion.ErrInvalid):
		return "invalid"
	case errors.Is(err, promotion.ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, promotion.ErrMinimumNotMet):
		return "minimum_not_met"
	default:
		return "error"
	}
}

// CreatePromotion создаёт промо-акцию. Ошибки полей возвращаются как validation.Errors.
func (s *Service) CreatePromotion(ctx context.Context, p *model.Promotion) error {
	p.Code = promotion.NormalizeCode(p.Code)

	var errs validation.Errors
	if !validation.IsValidPromoCode(p.Code) {
		errs = append(errs, validation.FieldError{Field: "code", Message: "must be 3-32 letters, digits, '-' or '_'"})
	}
	switch p.Type {
	case model.PromotionPercentage:
		if !p.Value.IsPositive() || p.Value.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, validation.FieldError{Field: "value", Message: "percentage must be between 0 and 100"})
		}
	case model.PromotionFixedAmount:
		if !p.Value.IsPositive() {
			errs = append(errs, validation.FieldError{Field: "value", Message: "must be positive"})
		}
	case model.PromotionFreeShipping:
		p.Value = decimal.Zero
	default:
		errs = append(errs, validation.FieldError{Field: "type", Message: "must be one of percentage fixed_amount free_shipping"})
	}
	if p.UsageLimit != nil && *p.UsageLimit <= 0 {
		errs = append(errs, validation.FieldError{Field: "usageLimit", Message: "must be positive"})
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
		errs = append(errs, validation.FieldError{Field: "endDate", Message: "must be after startDate"})
	}
	if p.MinOrderValue != nil && p.MinOrderValue.IsNegative() {
		errs = append(errs, validation.FieldError{Field: "minOrderValue", Message: "must not be negative"})
	}
	if p.MaxDiscount != nil && !p.MaxDiscount.IsPositive() {
		errs = append(errs, validation.FieldError{Field: "maxDiscount", Message: "must be positive"})
	}
	if len(errs) > 0 {
		return errs
	}

	p.UsageCount = 0
	if err := s.repo.CreatePromotion(ctx, p); err != nil {
		return err
	}
	s.logger.Info("promotion created", zap.String("code", p.Code), zap.String("type", string(p.Type)))
	return nil
}

// ListPromotions возвращает все промо-акции.
func (s *Service) ListPromotions(ctx context.Context) ([]model.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}
