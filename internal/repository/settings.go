package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

// GetStoreSettings читает единственную строку настроек магазина.
func (r *PostgresRepository) GetStoreSettings(ctx context.Context) (*model.StoreSettings, error) {
	var (
		s           model.StoreSettings
		shippingFee int64
		taxRateBps  int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT currency, shipping_fee, tax_rate_bps,
			paystack_public_key, flutterwave_public_key, monnify_api_key, monnify_contract_code,
			remita_public_key, remita_merchant_id, remita_service_type_id, admin_email
		 FROM store_settings WHERE id = 1`,
	).Scan(&s.Currency, &shippingFee, &taxRateBps,
		&s.PaystackPublicKey, &s.FlutterwavePublicKey, &s.MonnifyAPIKey, &s.MonnifyContractCode,
		&s.RemitaPublicKey, &s.RemitaMerchantID, &s.RemitaServiceTypeID, &s.AdminEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.StoreSettings{Currency: "NGN"}, nil
		}
		return nil, fmt.Errorf("get store settings: %w", err)
	}

	s.ShippingFee = model.FromMinor(shippingFee)
	s.TaxRate = decimal.New(taxRateBps, -4)
	return &s, nil
}
