package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"match-service/internal/apperr"
)

func (s *Store) CreateGroup(ctx context.Context, g *MatchingGroup) error {
	return s.db.WithContext(ctx).Create(g).Error
}

func (s *Store) GetActiveGroup(ctx context.Context, id int64) (*MatchingGroup, error) {
	var g MatchingGroup
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("group", id)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindPendingByLocalProduct — активная pending-группа данной карточки,
// nil — если её нет (тогда Propose создаёт новую).
func (s *Store) FindPendingByLocalProduct(ctx context.Context, localID int64) (*MatchingGroup, error) {
	var g MatchingGroup
	err := s.db.WithContext(ctx).
		Where("local_product_id = ? AND status = ? AND is_active = ?", localID, GroupPending, true).
		Order("id ASC").
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGroupVersioned — апдейт с оптимистической проверкой версии.
// Ноль затронутых строк — кто-то успел раньше: ConflictError, вызывающий
// перечитывает и решает сам.
func (s *Store) UpdateGroupVersioned(ctx context.Context, id, version int64, updates map[string]any) error {
	updates["version"] = version + 1
	res := s.db.WithContext(ctx).Model(&MatchingGroup{}).
		Where("id = ? AND version = ? AND is_active = ?", id, version, true).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("group", id, "stale", "concurrent modification, reload and retry")
	}
	return nil
}

// AssignRawToGroup — привязка/отвязка строки поставщика.
// nil groupID возвращает строку в пул несматченных.
func (s *Store) AssignRawToGroup(ctx context.Context, rawID int64, groupID *int64) error {
	res := s.db.WithContext(ctx).Model(&SupplierRawProduct{}).
		Where("id = ? AND is_active = ?", rawID, true).
		Update("group_id", groupID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("raw product", rawID)
	}
	return nil
}

// DeactivateOrphanGroups — пакетная зачистка групп без живых участников.
// Идемпотентна: повторный запуск трогает ноль строк.
func (s *Store) DeactivateOrphanGroups(ctx context.Context) (int64, error) {
	members := s.db.Model(&SupplierRawProduct{}).
		Select("group_id").
		Where("group_id IS NOT NULL AND is_active = ?", true)
	res := s.db.WithContext(ctx).Model(&MatchingGroup{}).
		Where("is_active = ? AND id NOT IN (?)", true, members).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
