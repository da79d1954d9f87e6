// Package promotion содержит правила применения промокодов.
package promotion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

var (
	// ErrNotFound возвращается, если активная промо-акция с таким кодом не найдена.
	ErrNotFound = errors.New("promotion not found")
	// ErrInvalid возвращается, если промо-акция вне периода действия.
	ErrInvalid = errors.New("promotion is not valid")
	// ErrNotStarted уточняет ErrInvalid для акций, которые ещё не начались.
	ErrNotStarted = fmt.Errorf("%w: not started yet", ErrInvalid)
	// ErrExpired уточняет ErrInvalid для истёкших акций.
	ErrExpired = fmt.Errorf("%w: expired", ErrInvalid)
	// ErrLimitReached возвращается, если исчерпан лимит использований.
	ErrLimitReached = errors.New("promotion usage limit reached")
	// ErrMinimumNotMet возвращается, если сумма заказа меньше минимальной.
	ErrMinimumNotMet = errors.New("minimum order value not met")
)

// Result описывает применимую скидку.
type Result struct {
	PromotionID  int64
	Code         string
	Discount     decimal.Decimal
	FreeShipping bool
}

// NormalizeCode приводит промокод к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate проверяет применимость промо-акции к сумме заказа и рассчитывает скидку.
// Функция не изменяет счётчик использований.
func Evaluate(p *model.Promotion, orderTotal decimal.Decimal, now time.Time) (Result, error) {
	if p == nil || !p.IsActive {
		return Result{}, ErrNotFound
	}

	if p.StartDate != nil && now.Before(*p.StartDate) {
		return Result{}, ErrNotStarted
	}
	if p.EndDate != nil && now.After(*p.EndDate) {
		return Result{}, ErrExpired
	}

	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return Result{}, ErrLimitReached
	}

	if p.MinOrderValue != nil && orderTotal.LessThan(*p.MinOrderValue) {
		return Result{}, ErrMinimumNotMet
	}

	res := Result{
		PromotionID: p.ID,
		Code:        p.Code,
		Discount:    decimal.Zero,
	}

	var discount decimal.Decimal
	switch p.Type {
	case model.PromotionFreeShipping:
		res.FreeShipping = true
		return res, nil
	case model.PromotionPercentage:
		discount = orderTotal.Mul(p.Value).Div(decimal.NewFromInt(100))
		if p.MaxDiscount != nil && p.MaxDiscount.IsPositive() && discount.GreaterThan(*p.MaxDiscount) {
			discount = *p.MaxDiscount
		}
	case model.PromotionFixedAmount:
		discount = p.Value
	default:
		return Result{}, fmt.Errorf("%w: unknown type %q", ErrInvalid, p.Type)
	}

	res.Discount = Clamp(discount, orderTotal)
	return res, nil
}

// Clamp ограничивает скидку диапазоном [0, total] и округляет до минимальной денежной единицы.
func Clamp(discount, total decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(total) {
		discount = total
	}
	return discount.Round(2)
}
