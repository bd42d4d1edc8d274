// Package groups — жизненный цикл matching-групп: propose / confirm /
// reject / cleanup и снимок лучшей цены.
//
// Мутации одной группы строго последовательны: страйповый мьютекс в
// процессе плюс проверка версии на границе хранения — два конкурентных
// confirm не зафиксируют снимок дважды.
package groups

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"match-service/internal/apperr"
	"match-service/internal/matching/model"
	"match-service/internal/storage"
)

const lockStripes = 64

type Service struct {
	store *storage.Store
	log   zerolog.Logger
	locks [lockStripes]sync.Mutex
}

func NewService(store *storage.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, log: logger}
}

func (s *Service) lockFor(groupID int64) *sync.Mutex {
	return &s.locks[groupID%lockStripes]
}

// PriceEntry — одна строка ценового сравнения внутри группы.
type PriceEntry struct {
	RawProductID int64           `json:"raw_product_id"`
	SupplierRef  string          `json:"supplier_ref"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
}

// View — группа с участниками и сравнением цен.
type View struct {
	Group     storage.MatchingGroup        `json:"group"`
	Members   []storage.SupplierRawProduct `json:"members"`
	Prices    []PriceEntry                 `json:"prices"`
	BestPrice *PriceEntry                  `json:"best_price,omitempty"`
}

// Propose — создать pending-группу для карточки каталога или прицепить
// строку поставщика к уже существующей. Строка не может состоять в двух
// активных группах сразу.
func (s *Service) Propose(ctx context.Context, rawID, localID int64, method model.Method, confidence float64) (*storage.MatchingGroup, error) {
	raw, err := s.store.GetActiveRawProduct(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if raw.GroupID != nil {
		return nil, apperr.Conflict("raw product", rawID, "grouped", "already a member of an active group")
	}
	local, err := s.store.GetActiveLocalProduct(ctx, localID)
	if err != nil {
		return nil, err
	}

	g, err := s.store.FindPendingByLocalProduct(ctx, localID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = &storage.MatchingGroup{
			DisplayName:    local.Name,
			ImageURL:       local.ImageURL,
			LocalProductID: &local.ID,
			Method:         string(method),
			Status:         storage.GroupPending,
		}
		if err := s.store.CreateGroup(ctx, g); err != nil {
			return nil, err
		}
	}

	mu := s.lockFor(g.ID)
	mu.Lock()
	defer mu.Unlock()

	// версию перечитываем ПОД замком: между поиском группы и захватом страйпа
	// могла проехать чужая мутация
	g, err = s.store.GetActiveGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	if err := s.store.AssignRawToGroup(ctx, rawID, &g.ID); err != nil {
		return nil, err
	}
	members, err := s.store.ActiveGroupMembers(ctx, g.ID)
	if err != nil {
		s.unassign(ctx, rawID)
		return nil, err
	}
	if err := s.store.UpdateGroupVersioned(ctx, g.ID, g.Version, map[string]any{
		"member_count": len(members),
	}); err != nil {
		// ошибка не должна оставлять строку прицепленной к группе
		s.unassign(ctx, rawID)
		return nil, err
	}
	s.log.Info().Int64("group", g.ID).Int64("raw", rawID).Float64("confidence", confidence).Msg("member proposed")
	return s.store.GetActiveGroup(ctx, g.ID)
}

// unassign — откат привязки на ошибочной ветке, best effort.
func (s *Service) unassign(ctx context.Context, rawID int64) {
	if err := s.store.AssignRawToGroup(ctx, rawID, nil); err != nil {
		s.log.Error().Err(err).Int64("raw", rawID).Msg("rollback assign failed")
	}
}

// Confirm — pending → confirmed с фиксацией лучшей цены.
// Группа без живых участников не подтверждается.
func (s *Service) Confirm(ctx context.Context, groupID int64, by string) (*storage.MatchingGroup, error) {
	mu := s.lockFor(groupID)
	mu.Lock()
	defer mu.Unlock()

	g, err := s.store.GetActiveGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != storage.GroupPending {
		return nil, apperr.Conflict("group", groupID, g.Status, "only pending groups can be confirmed")
	}
	members, err := s.store.ActiveGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperr.NotFound("active group member", groupID)
	}

	best := bestPrice(members)
	now := time.Now().UTC()
	err = s.store.UpdateGroupVersioned(ctx, groupID, g.Version, map[string]any{
		"status":                  storage.GroupConfirmed,
		"member_count":            len(members),
		"best_price":              best.Price,
		"best_price_currency":     best.Currency,
		"best_price_supplier_ref": best.SupplierRef,
		"confirmed_by":            by,
		"confirmed_at":            &now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("group", groupID).Str("by", by).Str("best_price", best.Price.String()).Msg("group confirmed")
	return s.store.GetActiveGroup(ctx, groupID)
}

// Reject — отцепить одного участника обратно в пул. Опустевшая группа
// помечается rejected, а не тихо исчезает.
func (s *Service) Reject(ctx context.Context, groupID, rawID int64) error {
	mu := s.lockFor(groupID)
	mu.Lock()
	defer mu.Unlock()

	g, err := s.store.GetActiveGroup(ctx, groupID)
	if err != nil {
		return err
	}
	raw, err := s.store.GetActiveRawProduct(ctx, rawID)
	if err != nil {
		return err
	}
	if raw.GroupID == nil || *raw.GroupID != groupID {
		return apperr.Conflict("raw product", rawID, "ungrouped", "not a member of this group")
	}

	if err := s.store.AssignRawToGroup(ctx, rawID, nil); err != nil {
		return err
	}
	members, err := s.store.ActiveGroupMembers(ctx, groupID)
	if err != nil {
		return err
	}
	updates := map[string]any{"member_count": len(members)}
	if len(members) == 0 {
		updates["status"] = storage.GroupRejected
	}
	if err := s.store.UpdateGroupVersioned(ctx, groupID, g.Version, updates); err != nil {
		return err
	}
	s.log.Info().Int64("group", groupID).Int64("raw", rawID).Int("members_left", len(members)).Msg("member rejected")
	return nil
}

// CleanupOrphaned — деактивировать все группы без живых участников.
// Идемпотентно: второй запуск подряд возвращает 0.
func (s *Service) CleanupOrphaned(ctx context.Context) (int64, error) {
	n, err := s.store.DeactivateOrphanGroups(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("removed", n).Msg("orphaned groups deactivated")
	}
	return n, nil
}

// Get — группа с участниками и живым сравнением цен.
func (s *Service) Get(ctx context.Context, groupID int64) (*View, error) {
	g, err := s.store.GetActiveGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ActiveGroupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	v := &View{Group: *g, Members: members, Prices: make([]PriceEntry, 0, len(members))}
	for _, m := range members {
		v.Prices = append(v.Prices, PriceEntry{
			RawProductID: m.ID,
			SupplierRef:  m.SupplierRef,
			Price:        m.Price,
			Currency:     m.Currency,
		})
	}
	if len(members) > 0 {
		best := bestPrice(members)
		v.BestPrice = &best
	}
	return v, nil
}

// bestPrice — минимум по живым участникам; members идут в порядке импорта,
// строгое "<" оставляет при равенстве самый ранний.
func bestPrice(members []storage.SupplierRawProduct) PriceEntry {
	best := members[0]
	for _, m := range members[1:] {
		if m.Price.Cmp(best.Price) < 0 {
			best = m
		}
	}
	return PriceEntry{
		RawProductID: best.ID,
		SupplierRef:  best.SupplierRef,
		Price:        best.Price,
		Currency:     best.Currency,
	}
}
