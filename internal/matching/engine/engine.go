// Package engine — оркестратор подбора: скан пула кандидатов, скоринг,
// фильтрация, ранжирование. Без состояния: один сырой товар никак не влияет
// на скоринг другого, батч параллелится свободно.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"match-service/internal/matching/ident"
	"match-service/internal/matching/model"
	"match-service/internal/matching/text"
)

// visualFloor — лексический пол для дорогого сигнала: картинки качаем только
// по кандидатам, у которых текст уже хоть как-то похож.
const defaultVisualFloor = 0.25

// VisualScorer — то, что движку нужно от vision (в тестах — стаб).
type VisualScorer interface {
	Similarity(ctx context.Context, urlA, urlB string) model.VisualResult
}

type Engine struct {
	norm        *text.Normalizer
	vision      VisualScorer
	log         zerolog.Logger
	visualFloor float64
}

func New(norm *text.Normalizer, vision VisualScorer, logger zerolog.Logger) *Engine {
	return &Engine{
		norm:        norm,
		vision:      vision,
		log:         logger,
		visualFloor: defaultVisualFloor,
	}
}

// FindMatches — ранжированные подсказки для одного сырого товара.
// eliminated применяется ДО отсечения по MaxResults: выбитая пара не должна
// съедать слот в топ-N.
func (e *Engine) FindMatches(ctx context.Context, raw model.RawProduct, snap *Snapshot, opt model.Options, eliminated map[int64]struct{}) []model.Suggestion {
	nameNorm := e.norm.Normalize(raw.BestName())

	needVisual := opt.Strategy == model.StrategyImage || opt.Strategy == model.StrategyHybrid

	out := make([]model.Suggestion, 0, 16)
	for _, id := range snap.ids {
		if _, dead := eliminated[id]; dead {
			continue
		}
		cand := snap.byID[id]

		idRes := ident.Match(raw.EAN, cand.EAN)
		lex := model.LexicalResult{Score: text.LexicalScoreNorm(nameNorm, snap.normName[id])}

		vis := model.VisualResult{}
		if needVisual && idRes.Verdict != model.IdentMatch && lex.Score >= e.visualFloor {
			vis = e.vision.Similarity(ctx, raw.ImageURL, cand.ImageURL)
		}

		conf, method := Combine(opt.Strategy, lex, vis, idRes)
		if conf < opt.MinConfidence {
			continue
		}

		s := model.Suggestion{
			Candidate:  cand,
			Confidence: conf,
			Method:     method,
			Lexical:    lex.Score,
		}
		if vis.Available {
			v := vis.Score
			s.Visual = &v
		}
		out = append(out, s)
	}

	// убывание по confidence, при равенстве — по ID кандидата:
	// порядок воспроизводим от прогона к прогону
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Candidate.ID < out[j].Candidate.ID
	})

	if opt.MaxResults > 0 && len(out) > opt.MaxResults {
		out = out[:opt.MaxResults]
	}
	return out
}

// MatchBatch — параллельный прогон пачки сырых товаров по одному снапшоту.
// workers ограничивает конкуренцию; общего мутируемого состояния нет,
// кроме read-only снапшота и кэша хэшей внутри vision.
func (e *Engine) MatchBatch(ctx context.Context, raws []model.RawProduct, snap *Snapshot, opt model.Options, elimFor func(ctx context.Context, rawID int64) (map[int64]struct{}, error), workers int) (map[int64][]model.Suggestion, error) {
	if workers <= 0 {
		workers = 4
	}
	// кэш хэшей валиден в пределах одного батча: снапшот сменился — кэш тоже
	if rc, ok := e.vision.(interface{ ResetCache() }); ok {
		rc.ResetCache()
	}
	var mu sync.Mutex
	res := make(map[int64][]model.Suggestion, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, raw := range raws {
		raw := raw
		g.Go(func() error {
			eliminated, err := elimFor(gctx, raw.ID)
			if err != nil {
				return err
			}
			sugg := e.FindMatches(gctx, raw, snap, opt, eliminated)
			mu.Lock()
			res[raw.ID] = sugg
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
