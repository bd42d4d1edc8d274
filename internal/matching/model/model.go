package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy — запрошенный способ сопоставления.
type Strategy string

const (
	StrategyText   Strategy = "text"
	StrategyImage  Strategy = "image"
	StrategyHybrid Strategy = "hybrid"
)

// Method — способ, который реально сработал для пары.
type Method string

const (
	MethodText       Method = "text"
	MethodImage      Method = "image"
	MethodHybrid     Method = "hybrid"
	MethodIdentifier Method = "identifier"
	MethodManual     Method = "manual"
)

// Options — параметры одного запуска подбора.
type Options struct {
	Strategy      Strategy
	MinConfidence float64 // порог отсечения (0..1)
	MaxResults    int     // сколько подсказок вернуть после фильтрации
}

// RawProduct — сырой товар поставщика в том виде, в каком его видит движок.
type RawProduct struct {
	ID             int64
	SupplierRef    string
	Name           string // исходное наименование (обычно китайское)
	NameTranslated string
	Specification  string
	EAN            string
	Price          decimal.Decimal
	Currency       string
	ProductURL     string
	ImageURL       string
	ImportedAt     time.Time
}

// LocalProduct — карточка локального каталога (read-only для движка).
type LocalProduct struct {
	ID       int64
	Name     string
	EAN      string
	SKU      string
	ImageURL string
}

// BestName — имя для скоринга: перевод, если есть, иначе исходное.
func (r RawProduct) BestName() string {
	if r.NameTranslated != "" {
		return r.NameTranslated
	}
	return r.Name
}

// === tagged-результаты сигналов ===
// Каждый сигнал возвращает свой тип, гибрид складывает их чистой функцией
// без nil-проверок по дороге.

// LexicalResult — текстовый сигнал, всегда доступен.
type LexicalResult struct {
	Score float64
}

// VisualResult — картиночный сигнал. Unavailable ≠ 0: недоступный сигнал
// исключается из комбинации, а не занижает её.
type VisualResult struct {
	Available bool
	Score     float64
}

// IdentVerdict — исход сравнения структурных кодов (EAN).
type IdentVerdict int

const (
	IdentNoData   IdentVerdict = iota // хотя бы у одной стороны кода нет
	IdentInvalid                      // код не прошёл контрольную сумму
	IdentMismatch                     // оба кода валидны, но разные
	IdentMatch                        // точное совпадение валидных кодов
)

// IdentifierResult — сигнал по кодам. Match форсирует confidence = 1.0,
// всё остальное нейтрально.
type IdentifierResult struct {
	Verdict IdentVerdict
}

// Suggestion — одна строка ранжированного результата.
type Suggestion struct {
	Candidate  LocalProduct `json:"candidate"`
	Confidence float64      `json:"confidence"`
	Method     Method       `json:"method"`
	Lexical    float64      `json:"lexical"`
	Visual     *float64     `json:"visual,omitempty"` // nil, если сигнал был недоступен
}
