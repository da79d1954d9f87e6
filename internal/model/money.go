package model

import "github.com/shopspring/decimal"

// ToMinor переводит сумму в минимальные денежные единицы (копейки, кобо).
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinor переводит сумму из минимальных денежных единиц.
func FromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// FromMinorPtr переводит nullable сумму из минимальных денежных единиц.
func FromMinorPtr(v *int64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := FromMinor(*v)
	return &d
}

// ToMinorPtr переводит nullable сумму в минимальные денежные единицы.
func ToMinorPtr(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	v := ToMinor(*d)
	return &v
}
