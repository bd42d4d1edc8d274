package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"match-service/internal/apperr"
)

func (s *Store) CreateRawProduct(ctx context.Context, p *SupplierRawProduct) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// GetActiveRawProduct — только живые строки; выключенные для всех операций
// эквивалентны отсутствующим.
func (s *Store) GetActiveRawProduct(ctx context.Context, id int64) (*SupplierRawProduct, error) {
	var p SupplierRawProduct
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("raw product", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindActiveBySupplierRef — для upsert при повторном импорте.
// nil, nil — если такой строки ещё нет.
func (s *Store) FindActiveBySupplierRef(ctx context.Context, ref string) (*SupplierRawProduct, error) {
	if ref == "" {
		return nil, nil
	}
	var p SupplierRawProduct
	err := s.db.WithContext(ctx).Where("supplier_ref = ? AND is_active = ?", ref, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateRawPrice(ctx context.Context, id int64, price decimal.Decimal, currency string) error {
	return s.db.WithContext(ctx).Model(&SupplierRawProduct{}).Where("id = ?", id).
		Updates(map[string]any{"price": price, "currency": currency}).Error
}

// DeactivateRawProduct — soft-delete. История группы и цен остаётся.
func (s *Store) DeactivateRawProduct(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&SupplierRawProduct{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("raw product", id)
	}
	return nil
}

// ActiveGroupMembers — живые участники группы, старые импорты первыми
// (этот порядок и есть тай-брейк лучшей цены).
func (s *Store) ActiveGroupMembers(ctx context.Context, groupID int64) ([]SupplierRawProduct, error) {
	var out []SupplierRawProduct
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
