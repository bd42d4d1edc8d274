package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Eliminate — идемпотентная вставка пары "никогда не предлагать".
// Дубликат — не ошибка: возвращаем alreadyExisted=true, строк в таблице
// не прибавляется. Конкурентные дубли разруливает уникальный индекс,
// внешних блокировок не нужно.
func (s *Store) Eliminate(ctx context.Context, rawID, localID int64, by, reason string) (alreadyExisted bool, err error) {
	e := EliminatedSuggestion{
		RawProductID:   rawID,
		LocalProductID: localID,
		EliminatedBy:   by,
		Reason:         reason,
	}
	err = s.db.WithContext(ctx).Create(&e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// EliminatedIDSet — множество выбитых кандидатов для фильтра оркестратора.
func (s *Store) EliminatedIDSet(ctx context.Context, rawID int64) (map[int64]struct{}, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&EliminatedSuggestion{}).
		Where("raw_product_id = ?", rawID).
		Pluck("local_product_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *Store) ListEliminations(ctx context.Context, rawID int64) ([]EliminatedSuggestion, error) {
	var out []EliminatedSuggestion
	err := s.db.WithContext(ctx).
		Where("raw_product_id = ?", rawID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) CountEliminations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&EliminatedSuggestion{}).Count(&n).Error
	return n, err
}
