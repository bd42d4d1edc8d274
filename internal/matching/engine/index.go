package engine

import (
	"sort"

	"match-service/internal/matching/model"
)

// Snapshot — read-only срез каталога на один прогон. Строится один раз,
// дальше только читается; между батчами пересобирается заново, посреди
// прогона не мутирует никогда.
//
// Имена нормализуются здесь, один раз на пул: лексический скоринг идёт по
// ВСЕМ кандидатам (дешёвый сигнал пропускать нельзя — пара может делить
// символы, не деля ни одной n-граммы), экономим только на нормализации.
type Snapshot struct {
	ids      []int64 // отсортированы: прогон детерминирован
	byID     map[int64]model.LocalProduct
	normName map[int64]string
}

func (e *Engine) NewSnapshot(pool []model.LocalProduct) *Snapshot {
	snap := &Snapshot{
		ids:      make([]int64, 0, len(pool)),
		byID:     make(map[int64]model.LocalProduct, len(pool)),
		normName: make(map[int64]string, len(pool)),
	}
	for _, p := range pool {
		snap.ids = append(snap.ids, p.ID)
		snap.byID[p.ID] = p
		snap.normName[p.ID] = e.norm.Normalize(p.Name)
	}
	sort.Slice(snap.ids, func(i, j int) bool { return snap.ids[i] < snap.ids[j] })
	return snap
}
