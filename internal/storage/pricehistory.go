package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// AppendPrice — снимок цены. Только вставка, никаких апдейтов/удалений.
func (s *Store) AppendPrice(ctx context.Context, rawID int64, price decimal.Decimal, currency string) error {
	return s.db.WithContext(ctx).Create(&PriceHistory{
		RawProductID: rawID,
		Price:        price,
		Currency:     currency,
	}).Error
}

func (s *Store) PriceHistoryFor(ctx context.Context, rawID int64) ([]PriceHistory, error) {
	var out []PriceHistory
	err := s.db.WithContext(ctx).
		Where("raw_product_id = ?", rawID).
		Order("observed_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
