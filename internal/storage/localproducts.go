package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"match-service/internal/apperr"
	"match-service/internal/matching/model"
)

func (s *Store) CreateLocalProduct(ctx context.Context, p *LocalProduct) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetActiveLocalProduct(ctx context.Context, id int64) (*LocalProduct, error) {
	var p LocalProduct
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("local product", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCandidateProducts — снапшот пула кандидатов для одного прогона.
// nameFilter опционален (LIKE по имени). Результат read-only по договорённости:
// движок его не мутирует.
func (s *Store) GetCandidateProducts(ctx context.Context, nameFilter string) ([]model.LocalProduct, error) {
	q := s.db.WithContext(ctx).Model(&LocalProduct{}).Where("is_active = ?", true)
	if nameFilter != "" {
		q = q.Where("name LIKE ?", "%"+nameFilter+"%")
	}
	var rows []LocalProduct
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.LocalProduct, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToModel())
	}
	return out, nil
}
