// Package matching — прикладной фасад движка: достаёт сырой товар и снапшот
// каталога из хранилища, прогоняет оркестратор, персистит скоринг.
package matching

import (
	"context"

	"github.com/rs/zerolog"

	"match-service/internal/matching/engine"
	"match-service/internal/matching/model"
	"match-service/internal/storage"
)

type Service struct {
	store   *storage.Store
	engine  *engine.Engine
	log     zerolog.Logger
	workers int
}

func NewService(store *storage.Store, eng *engine.Engine, workers int, logger zerolog.Logger) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{store: store, engine: eng, log: logger, workers: workers}
}

// Match — подсказки для одного сырого товара + запись MatchingScore.
// "Ничего не нашлось" — пустой список, не ошибка.
func (s *Service) Match(ctx context.Context, rawID int64, opt model.Options) ([]model.Suggestion, error) {
	raw, err := s.store.GetActiveRawProduct(ctx, rawID)
	if err != nil {
		return nil, err
	}
	pool, err := s.store.GetCandidateProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	snap := s.engine.NewSnapshot(pool)

	eliminated, err := s.store.EliminatedIDSet(ctx, rawID)
	if err != nil {
		return nil, err
	}

	sugg := s.engine.FindMatches(ctx, raw.ToModel(), snap, opt, eliminated)
	if err := s.store.InsertScores(ctx, rawID, sugg); err != nil {
		// скоринг посчитан, потеря explainability-строк — не повод ронять ответ
		s.log.Error().Err(err).Int64("raw", rawID).Msg("persist scores")
	}
	return sugg, nil
}

// MatchBatch — тот же подбор для пачки сырых товаров по одному снапшоту
// каталога, с ограниченной конкуренцией.
func (s *Service) MatchBatch(ctx context.Context, rawIDs []int64, opt model.Options) (map[int64][]model.Suggestion, error) {
	raws := make([]model.RawProduct, 0, len(rawIDs))
	for _, id := range rawIDs {
		r, err := s.store.GetActiveRawProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		raws = append(raws, r.ToModel())
	}
	pool, err := s.store.GetCandidateProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	snap := s.engine.NewSnapshot(pool)

	res, err := s.engine.MatchBatch(ctx, raws, snap, opt,
		func(gctx context.Context, rawID int64) (map[int64]struct{}, error) {
			return s.store.EliminatedIDSet(gctx, rawID)
		}, s.workers)
	if err != nil {
		return nil, err
	}
	for rawID, sugg := range res {
		if err := s.store.InsertScores(ctx, rawID, sugg); err != nil {
			s.log.Error().Err(err).Int64("raw", rawID).Msg("persist scores")
		}
	}
	return res, nil
}
