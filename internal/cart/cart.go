// Package cart содержит состояние корзины покупателя.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity возвращается при добавлении неположительного количества.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Item описывает строку корзины.
type Item struct {
	ProductID int64
	VariantID *int64
	Quantity  int
	Price     decimal.Decimal
}

// Total возвращает стоимость строки.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) sameLine(productID int64, variantID *int64) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariantID == nil || variantID == nil {
		return i.VariantID == nil && variantID == nil
	}
	return *i.VariantID == *variantID
}

// Cart хранит упорядоченный набор строк корзины.
type Cart struct {
	items []Item
}

// New создаёт корзину из набора строк, объединяя повторяющиеся позиции.
func New(items ...Item) (*Cart, error) {
	c := &Cart{}
	for _, it := range items {
		if err := c.Add(it); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add добавляет позицию. Повторное добавление того же товара и варианта увеличивает количество,
// цена берётся из последнего добавления.
func (c *Cart) Add(item Item) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for idx := range c.items {
		if c.items[idx].sameLine(item.ProductID, item.VariantID) {
			c.items[idx].Quantity += item.Quantity
			c.items[idx].Price = item.Price
			return nil
		}
	}
	c.items = append(c.items, item)
	return nil
}

// Update задаёт количество позиции. Неположительное количество удаляет строку.
func (c *Cart) Update(productID int64, variantID *int64, quantity int) {
	if quantity <= 0 {
		c.Remove(productID, variantID)
		return
	}
	for idx := range c.items {
		if c.items[idx].sameLine(productID, variantID) {
			c.items[idx].Quantity = quantity
			return
		}
	}
}

// Remove удаляет позицию из корзины.
func (c *Cart) Remove(productID int64, variantID *int64) {
	for idx := range c.items {
		if c.items[idx].sameLine(productID, variantID) {
			c.items = append(c.items[:idx], c.items[idx+1:]...)
			return
		}
	}
}

// Items возвращает копию строк корзины.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Count возвращает общее количество единиц товара.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Subtotal возвращает сумму по всем строкам.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.items {
		sum = sum.Add(it.Total())
	}
	return sum
}

// Empty сообщает, пуста ли корзина.
func (c *Cart) Empty() bool {
	return len(c.items) == 0
}
