package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"match-service/internal/apperr"
	"match-service/internal/importer"
	"match-service/internal/matching/model"
)

func reqLogger(r *http.Request, base zerolog.Logger) zerolog.Logger {
	if rid := r.Header.Get("X-Request-ID"); rid != "" {
		return base.With().Str("req_id", rid).Logger()
	}
	return base
}

// userFrom — кто нажал кнопку. Авторизация вне скоупа, заголовка достаточно.
func userFrom(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return "operator"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError — таксономия → статус. Transient сюда долетать не должен
// (он гасится на уровне сигнала), но на всякий случай маппится в 502.
func writeAppError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case apperr.IsValidation(err):
		httpError(w, http.StatusBadRequest, err.Error())
	case apperr.IsNotFound(err):
		httpError(w, http.StatusNotFound, err.Error())
	case apperr.IsConflict(err):
		httpError(w, http.StatusConflict, err.Error())
	case apperr.IsTransient(err):
		log.Warn().Err(err).Msg("transient error escaped to http layer")
		httpError(w, http.StatusBadGateway, "signal temporarily unavailable")
	default:
		log.Error().Err(err).Msg("internal")
		httpError(w, http.StatusInternalServerError, "internal")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "bad id")
		return 0, false
	}
	return id, true
}

// optionsFromRequest — дефолты и валидация параметров подбора.
// nil-поле — "не передано", берём дефолт; явный ноль — легальное значение
// (min_confidence 0 — без порога, max_results 0 — без отсечки).
func optionsFromRequest(req matchRequest) (model.Options, error) {
	opt := model.Options{
		Strategy:      model.StrategyHybrid,
		MinConfidence: 0.5,
		MaxResults:    10,
	}
	switch req.Strategy {
	case "":
	case string(model.StrategyText), string(model.StrategyImage), string(model.StrategyHybrid):
		opt.Strategy = model.Strategy(req.Strategy)
	default:
		return opt, apperr.Validationf("strategy", "unknown strategy %q", req.Strategy)
	}
	if req.MinConfidence != nil {
		v := *req.MinConfidence
		if v < 0 || v > 1 || math.IsNaN(v) {
			return opt, apperr.Validationf("min_confidence", "must be in [0,1]")
		}
		opt.MinConfidence = v
	}
	if req.MaxResults != nil {
		if *req.MaxResults < 0 {
			return opt, apperr.Validationf("max_results", "must not be negative")
		}
		opt.MaxResults = *req.MaxResults
	}
	return opt, nil
}

// mappingFromForm — переопределения колонок из формы поверх дефолтов.
func mappingFromForm(r *http.Request) importer.Mapping {
	m := importer.DefaultMapping()
	if v := r.FormValue("name_col"); v != "" {
		m.NameKey = v
	}
	if v := r.FormValue("ref_col"); v != "" {
		m.RefKey = v
	}
	if v := r.FormValue("price_col"); v != "" {
		m.PriceKey = v
	}
	if v := r.FormValue("currency_col"); v != "" {
		m.CurrencyKey = v
	}
	if v := r.FormValue("spec_col"); v != "" {
		m.SpecKey = v
	}
	if v := r.FormValue("url_col"); v != "" {
		m.URLKey = v
	}
	if v := r.FormValue("image_col"); v != "" {
		m.ImageKey = v
	}
	if v := r.FormValue("ean_col"); v != "" {
		m.EANKey = v
	}
	m.HeaderRow = atoi(r.FormValue("header_row"), 1)
	return m
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
