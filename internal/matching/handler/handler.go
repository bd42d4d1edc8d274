package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"match-service/internal/config"
	"match-service/internal/fileio"
	"match-service/internal/groups"
	"match-service/internal/importer"
	"match-service/internal/matching"
	"match-service/internal/matching/model"
	"match-service/internal/storage"
)

// Deps — зависимости HTTP-слоя. Хэндлеры тонкие: распарсить запрос,
// дёрнуть сервис, замапить ошибку.
type Deps struct {
	Cfg      config.Config
	Log      zerolog.Logger
	Importer *importer.Importer
	Matcher  *matching.Service
	Groups   *groups.Service
	Store    *storage.Store
}

// Import — multipart-загрузка фида (xlsx/xls/csv) + маппинг колонок в форме.
// Отчёт возвращается всегда, даже если не импортировалось ничего.
func Import(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := reqLogger(r, d.Log)

		if err := r.ParseMultipartForm(int64(d.Cfg.MaxUploadMB) << 20); err != nil {
			httpError(w, http.StatusBadRequest, "bad multipart form: "+err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "missing file: "+err.Error())
			return
		}
		defer file.Close()

		m := mappingFromForm(r)
		rows, err := fileio.ReadAnyMaps(file, header.Filename, m.HeaderRow)
		if err != nil {
			httpError(w, http.StatusBadRequest, "failed to read feed: "+err.Error())
			return
		}

		batchRef := r.FormValue("batch_ref")
		if batchRef == "" {
			batchRef = time.Now().UTC().Format("20060102-150405")
		}

		rep, err := d.Importer.ImportMaps(r.Context(), batchRef, rows, m)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		log.Info().
			Str("batch", batchRef).
			Int("imported", rep.ImportedCount).
			Int("skipped", rep.SkippedCount).
			Dur("elapsed", time.Since(start)).
			Msg("import handled")
		writeJSON(w, http.StatusOK, rep)
	}
}

// Пороговые поля — указатели: явный ноль и "не передано" — разные вещи
// (min_confidence: 0 легален и означает "без порога").
type matchRequest struct {
	RawProductID  int64    `json:"raw_product_id"`
	Strategy      string   `json:"strategy"`
	MinConfidence *float64 `json:"min_confidence"`
	MaxResults    *int     `json:"max_results"`
}

// Match — ранжированные подсказки для одного сырого товара.
func Match(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := reqLogger(r, d.Log)

		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		opt, err := optionsFromRequest(req)
		if err != nil {
			writeAppError(w, log, err)
			return
		}

		sugg, err := d.Matcher.Match(r.Context(), req.RawProductID, opt)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		log.Info().
			Int64("raw", req.RawProductID).
			Str("strategy", string(opt.Strategy)).
			Int("suggestions", len(sugg)).
			Dur("elapsed", time.Since(start)).
			Msg("match handled")
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": sugg})
	}
}

type matchBatchRequest struct {
	RawProductIDs []int64  `json:"raw_product_ids"`
	Strategy      string   `json:"strategy"`
	MinConfidence *float64 `json:"min_confidence"`
	MaxResults    *int     `json:"max_results"`
}

// MatchBatch — подбор для пачки строк по одному снапшоту каталога.
func MatchBatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := reqLogger(r, d.Log)

		var req matchBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		if len(req.RawProductIDs) == 0 {
			httpError(w, http.StatusBadRequest, "raw_product_ids is empty")
			return
		}
		opt, err := optionsFromRequest(matchRequest{
			Strategy:      req.Strategy,
			MinConfidence: req.MinConfidence,
			MaxResults:    req.MaxResults,
		})
		if err != nil {
			writeAppError(w, log, err)
			return
		}

		res, err := d.Matcher.MatchBatch(r.Context(), req.RawProductIDs, opt)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		log.Info().
			Int("raws", len(req.RawProductIDs)).
			Str("strategy", string(opt.Strategy)).
			Dur("elapsed", time.Since(start)).
			Msg("batch match handled")
		writeJSON(w, http.StatusOK, map[string]any{"results": res})
	}
}

// Scores — последние посчитанные строки скоринга по сырому товару
// (объяснимость: из чего сложился confidence).
func Scores(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if _, err := d.Store.GetActiveRawProduct(r.Context(), id); err != nil {
			writeAppError(w, log, err)
			return
		}
		rows, err := d.Store.LatestScores(r.Context(), id, atoi(r.URL.Query().Get("limit"), 50))
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scores": rows})
	}
}

// PriceHistoryFor — снимки цены сырого товара в порядке наблюдения.
func PriceHistoryFor(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if _, err := d.Store.GetActiveRawProduct(r.Context(), id); err != nil {
			writeAppError(w, log, err)
			return
		}
		hist, err := d.Store.PriceHistoryFor(r.Context(), id)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": hist})
	}
}

// ListEliminations — вечно выбитые пары по сырому товару.
func ListEliminations(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		rawID, err := strconv.ParseInt(r.URL.Query().Get("raw_product_id"), 10, 64)
		if err != nil || rawID <= 0 {
			httpError(w, http.StatusBadRequest, "bad raw_product_id")
			return
		}
		rows, err := d.Store.ListEliminations(r.Context(), rawID)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"eliminations": rows})
	}
}

type proposeRequest struct {
	RawProductID   int64   `json:"raw_product_id"`
	LocalProductID int64   `json:"local_product_id"`
	Confidence     float64 `json:"confidence"`
	Method         string  `json:"method"`
}

func ProposeGroup(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		var req proposeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		method := model.Method(req.Method)
		if method == "" {
			method = model.MethodManual
		}
		g, err := d.Groups.Propose(r.Context(), req.RawProductID, req.LocalProductID, method, req.Confidence)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func ConfirmGroup(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		g, err := d.Groups.Confirm(r.Context(), id, userFrom(r))
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

type rejectRequest struct {
	MemberID int64 `json:"member_id"`
}

func RejectGroup(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req rejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		if err := d.Groups.Reject(r.Context(), id, req.MemberID); err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func GetGroup(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		v, err := d.Groups.Get(r.Context(), id)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func CleanupGroups(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		n, err := d.Groups.CleanupOrphaned(r.Context())
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed_count": n})
	}
}

type eliminateRequest struct {
	RawProductID   int64  `json:"raw_product_id"`
	LocalProductID int64  `json:"local_product_id"`
	Reason         string `json:"reason"`
}

// Eliminate — вечное "не предлагать". Повтор — не ошибка:
// 200 + already_existed=true.
func Eliminate(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := reqLogger(r, d.Log)
		var req eliminateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "bad json: "+err.Error())
			return
		}
		// обе стороны должны существовать: выбитая пара переживает годы,
		// мусор в ней недопустим
		if _, err := d.Store.GetActiveRawProduct(r.Context(), req.RawProductID); err != nil {
			writeAppError(w, log, err)
			return
		}
		if _, err := d.Store.GetActiveLocalProduct(r.Context(), req.LocalProductID); err != nil {
			writeAppError(w, log, err)
			return
		}
		existed, err := d.Store.Eliminate(r.Context(), req.RawProductID, req.LocalProductID, userFrom(r), req.Reason)
		if err != nil {
			writeAppError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"already_existed": existed})
	}
}
