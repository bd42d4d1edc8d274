// Package importer — табличный фид поставщика → SupplierRawProduct.
// Битая строка не валит батч: она пропускается, ошибка копится в отчёте.
package importer

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"match-service/internal/apperr"
	"match-service/internal/matching/ident"
	"match-service/internal/storage"
)

// Mapping — желаемые имена колонок. Альтернативы через "|", как в выгрузках:
// один и тот же фид приходит то с китайскими, то с английскими шапками.
type Mapping struct {
	NameKey     string
	RefKey      string
	PriceKey    string
	CurrencyKey string
	SpecKey     string
	URLKey      string
	ImageKey    string
	EANKey      string
	HeaderRow   int // 1-based
}

func DefaultMapping() Mapping {
	return Mapping{
		NameKey:     "名称|商品名称|商品|name|title|наименование",
		RefKey:      "货号|编号|sku|ref|артикул",
		PriceKey:    "价格|单价|price|цена",
		CurrencyKey: "币种|货币|currency|валюта",
		SpecKey:     "规格|参数|spec|specification",
		URLKey:      "链接|商品链接|url|link",
		ImageKey:    "图片|主图|image|img|photo",
		EANKey:      "条码|条形码|ean|barcode|штрихкод",
		HeaderRow:   1,
	}
}

// RowError — ошибка одной строки/поля.
type RowError struct {
	Row   int    `json:"row"` // 1-based по данным батча
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Report — структурированный итог импорта. Возвращается всегда,
// даже если годных строк не нашлось.
type Report struct {
	ImportedCount int        `json:"imported_count"`
	SkippedCount  int        `json:"skipped_count"`
	Errors        []RowError `json:"errors"`
}

type Importer struct {
	store           *storage.Store
	log             zerolog.Logger
	defaultCurrency string
}

func New(store *storage.Store, logger zerolog.Logger) *Importer {
	return &Importer{store: store, log: logger, defaultCurrency: "CNY"}
}

// ImportMaps — прогнать распарсенные строки фида (map[шапка]значение).
// Имя и цена обязательны; повторный импорт того же артикула обновляет цену
// и дописывает PriceHistory при её изменении.
func (im *Importer) ImportMaps(ctx context.Context, batchRef string, maps []map[string]string, m Mapping) (Report, error) {
	rep := Report{Errors: []RowError{}}

	for i, rec := range maps {
		row := i + 1

		name := strings.TrimSpace(rec[resolveKey(rec, m.NameKey)])
		if name == "" {
			rep.SkippedCount++
			rep.Errors = append(rep.Errors, rowErr(row, "name", apperr.Validationf("name", "missing product name")))
			continue
		}

		price, ok := ParsePrice(rec[resolveKey(rec, m.PriceKey)])
		if !ok || price.Sign() <= 0 {
			rep.SkippedCount++
			rep.Errors = append(rep.Errors, rowErr(row, "price", apperr.Validationf("price", "missing or unparseable price %q", rec[resolveKey(rec, m.PriceKey)])))
			continue
		}

		currency := strings.ToUpper(strings.TrimSpace(rec[resolveKey(rec, m.CurrencyKey)]))
		if len(currency) != 3 {
			currency = im.defaultCurrency
		}

		ean := strings.TrimSpace(rec[resolveKey(rec, m.EANKey)])
		if ean != "" && !ident.ValidGTIN(ean) {
			// код с битой чексуммой не несём дальше, но строку импортируем
			rep.Errors = append(rep.Errors, rowErr(row, "ean", apperr.Validationf("ean", "invalid checksum in %q, code dropped", ean)))
			ean = ""
		}

		p := storage.SupplierRawProduct{
			SupplierRef:   strings.TrimSpace(rec[resolveKey(rec, m.RefKey)]),
			Name:          name,
			Specification: strings.TrimSpace(rec[resolveKey(rec, m.SpecKey)]),
			EAN:           ean,
			Price:         price,
			Currency:      currency,
			ProductURL:    strings.TrimSpace(rec[resolveKey(rec, m.URLKey)]),
			ImageURL:      strings.TrimSpace(rec[resolveKey(rec, m.ImageKey)]),
			ImportBatch:   batchRef,
		}

		if err := im.upsert(ctx, &p); err != nil {
			// ошибка хранилища — тоже локализуем до строки
			rep.SkippedCount++
			rep.Errors = append(rep.Errors, RowError{Row: row, Field: "", Msg: err.Error()})
			im.log.Error().Err(err).Int("row", row).Msg("import row failed")
			continue
		}
		rep.ImportedCount++
	}

	im.log.Info().
		Str("batch", batchRef).
		Int("imported", rep.ImportedCount).
		Int("skipped", rep.SkippedCount).
		Int("errors", len(rep.Errors)).
		Msg("import done")
	return rep, nil
}

func (im *Importer) upsert(ctx context.Context, p *storage.SupplierRawProduct) error {
	existing, err := im.store.FindActiveBySupplierRef(ctx, p.SupplierRef)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := im.store.CreateRawProduct(ctx, p); err != nil {
			return err
		}
		return im.store.AppendPrice(ctx, p.ID, p.Price, p.Currency)
	}
	// та же строка поставщика: фиксируем дрейф цены
	if existing.Price.Cmp(p.Price) != 0 || existing.Currency != p.Currency {
		if err := im.store.UpdateRawPrice(ctx, existing.ID, p.Price, p.Currency); err != nil {
			return err
		}
		if err := im.store.AppendPrice(ctx, existing.ID, p.Price, p.Currency); err != nil {
			return err
		}
	}
	p.ID = existing.ID
	return nil
}

func rowErr(row int, field string, err *apperr.ValidationError) RowError {
	return RowError{Row: row, Field: field, Msg: err.Msg}
}

// ParsePrice — "1 234,50", "¥19.90", "197 ,00" и прочий спредшитный мусор →
// decimal. false — если после чистки числа не осталось.
func ParsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	repl := strings.NewReplacer(
		"\u00A0", "", "\u202F", "", "\u2009", "", " ", "", "\t", "",
		"¥", "", "￥", "", "$", "", "€", "", "₽", "",
		",", ".",
	)
	s = repl.Replace(s)
	// выбрасываем всё, кроме цифр, точки и минуса
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" || s == "-" || s == "." {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// resolveKey — найти реальный ключ записи по желаемому имени с
// альтернативами "a|b|c": сначала как есть, потом по нормализованной шапке,
// потом по вхождению.
func resolveKey(rec map[string]string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	for i := range alts {
		alts[i] = strings.TrimSpace(alts[i])
	}

	for _, a := range alts {
		if _, ok := rec[a]; ok {
			return a
		}
	}

	norm := make([]string, 0, len(alts))
	for _, a := range alts {
		norm = append(norm, normHeaderKey(a))
	}

	bestKey := ""
	bestScore := 0
	for k := range rec {
		nk := normHeaderKey(k)
		for _, n := range norm {
			if nk == n {
				return k
			}
		}
		score := 0
		for _, n := range norm {
			if n != "" && (strings.Contains(nk, n) || strings.Contains(n, nk)) {
				if len(n) > score {
					score = len(n)
				}
			}
		}
		// при равном счёте победитель должен быть стабильным
		if score > bestScore || (score == bestScore && score > 0 && k < bestKey) {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("\u00A0", " ", "\u202F", " ", "\u3000", " ").Replace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r >= 0x4E00 && r <= 0x9FFF, r >= 'а' && r <= 'я':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
