package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID       int64   `json:"id" validate:"required"`
	Quantity int     `json:"quantity" validate:"gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

type testRequest struct {
	Email string     `json:"email" validate:"required,email"`
	Code  string     `json:"code" validate:"omitempty,promocode"`
	Items []testItem `json:"items" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        testRequest
		wantFields []string
	}{
		{
			name: "valid",
			req: testRequest{
				Email: "ada@example.com",
				Code:  "SUMMER20",
				Items: []testItem{{ID: 1, Quantity: 2, Price: 15000}},
			},
		},
		{
			name:       "missing email and items",
			req:        testRequest{},
			wantFields: []string{"email", "items"},
		},
		{
			name: "nested item errors use json path",
			req: testRequest{
				Email: "ada@example.com",
				Items: []testItem{{ID: 1, Quantity: 1}, {ID: 0, Quantity: 0, Price: -1}},
			},
			wantFields: []string{"items[1].id", "items[1].quantity", "items[1].price"},
		},
		{
			name: "bad promo code",
			req: testRequest{
				Email: "ada@example.com",
				Code:  "no spaces!",
				Items: []testItem{{ID: 1, Quantity: 1}},
			},
			wantFields: []string{"code"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}

			var verrs Errors
			require.True(t, errors.As(err, &verrs), "expected validation.Errors, got %T", err)

			got := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				got = append(got, fe.Field)
				assert.NotEmpty(t, fe.Message)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestIsValidPromoCode(t *testing.T) {
	assert.True(t, IsValidPromoCode("SUMMER20"))
	assert.True(t, IsValidPromoCode("black_friday-2026"))
	assert.False(t, IsValidPromoCode("AB"))
	assert.False(t, IsValidPromoCode("WITH SPACE"))
	assert.False(t, IsValidPromoCode("ПРОМО"))
}
