package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddMergesSameLine(t *testing.T) {
	v := int64(7)
	c, err := New(
		Item{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(15000)},
		Item{ProductID: 1, VariantID: &v, Quantity: 2, Price: decimal.NewFromInt(16000)},
		Item{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(15000)},
	)
	require.NoError(t, err)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Equal(t, 5, c.Count())
	assert.True(t, decimal.NewFromInt(77000).Equal(c.Subtotal()))
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	_, err := New(Item{ProductID: 1, Quantity: 0, Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCart_UpdateAndRemove(t *testing.T) {
	c, err := New(
		Item{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(100)},
		Item{ProductID: 2, Quantity: 1, Price: decimal.NewFromInt(200)},
	)
	require.NoError(t, err)

	c.Update(1, nil, 4)
	assert.True(t, decimal.NewFromInt(600).Equal(c.Subtotal()))

	c.Update(2, nil, 0)
	assert.Len(t, c.Items(), 1)

	c.Remove(1, nil)
	assert.True(t, c.Empty())
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_ScenarioSubtotal(t *testing.T) {
	c, err := New(
		Item{ProductID: 10, Quantity: 2, Price: decimal.NewFromInt(15000)},
		Item{ProductID: 11, Quantity: 1, Price: decimal.NewFromInt(15000)},
	)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45000).Equal(c.Subtotal()))
}
