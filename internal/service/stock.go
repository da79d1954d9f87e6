package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
)

// StockOp задаёт операцию изменения остатка.
type StockOp string

const (
	StockIncrement StockOp = "increment"
	StockDecrement StockOp = "decrement"
	StockSet       StockOp = "set"
)

// ErrInvalidStockOp возвращается при неизвестной операции с остатком.
var ErrInvalidStockOp = errors.New("invalid stock operation")

// CheckAvailability сообщает, можно ли заказать quantity единиц товара или его варианта.
func (s *Service) CheckAvailability(ctx context.Context, productID int64, variantID *int64, quantity int) (*model.Availability, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return &model.Availability{Message: "Product not found"}, nil
		}
		return nil, err
	}
	if !p.IsActive {
		return &model.Availability{Message: "Product is not available"}, nil
	}

	stock := p.Stock
	if variantID != nil {
		v := findVariant(p, *variantID)
		if v == nil {
			return &model.Availability{Message: "Variant not found"}, nil
		}
		stock = v.Stock
	}

	switch {
	case stock <= 0:
		return &model.Availability{Stock: 0, Message: "Out of stock"}, nil
	case stock < quantity:
		return &model.Availability{Stock: stock, Message: fmt.Sprintf("Only %d item(s) left in stock", stock)}, nil
	}
	return &model.Availability{Available: true, Stock: stock}, nil
}

// AdjustStock изменяет остаток товара или варианта и возвращает новое значение.
func (s *Service) AdjustStock(ctx context.Context, productID int64, variantID *int64, op StockOp, quantity int) (int, error) {
	ch := repository.StockChange{ProductID: productID, VariantID: variantID, Quantity: quantity}

	switch op {
	case StockIncrement:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		return s.repo.IncrementStock(ctx, ch)
	case StockDecrement:
		if quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		return s.repo.DecrementStock(ctx, ch)
	case StockSet:
		if quantity < 0 {
			return 0, ErrInvalidQuantity
		}
		return s.repo.SetStock(ctx, productID, variantID, quantity)
	default:
		return 0, ErrInvalidStockOp
	}
}

func findVariant(p *model.Product, id int64) *model.Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}
