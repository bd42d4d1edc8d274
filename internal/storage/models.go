package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"match-service/internal/matching/model"
)

// Статусы групп. pending → confirmed | rejected; оба терминальные,
// confirmed раскручивается только отцеплением участников.
const (
	GroupPending   = "pending"
	GroupConfirmed = "confirmed"
	GroupRejected  = "rejected"
)

// SupplierRawProduct — строка, импортированная из фида поставщика.
// Никогда не удаляется физически — только is_active=false.
type SupplierRawProduct struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	SupplierRef    string          `gorm:"size:100;index" json:"supplier_ref"`
	Name           string          `gorm:"size:500;not null" json:"name"`
	NameTranslated string          `gorm:"size:500" json:"name_translated"`
	Specification  string          `gorm:"type:text" json:"specification"`
	EAN            string          `gorm:"size:14;index" json:"ean"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Currency       string          `gorm:"size:3;not null;default:CNY" json:"currency"`
	ProductURL     string          `gorm:"size:1000" json:"product_url"`
	ImageURL       string          `gorm:"size:1000" json:"image_url"`
	ImportBatch    string          `gorm:"size:64;index" json:"import_batch"`
	GroupID        *int64          `gorm:"index" json:"group_id"` // не более одной активной группы
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *SupplierRawProduct) ToModel() model.RawProduct {
	return model.RawProduct{
		ID:             p.ID,
		SupplierRef:    p.SupplierRef,
		Name:           p.Name,
		NameTranslated: p.NameTranslated,
		Specification:  p.Specification,
		EAN:            p.EAN,
		Price:          p.Price,
		Currency:       p.Currency,
		ProductURL:     p.ProductURL,
		ImageURL:       p.ImageURL,
		ImportedAt:     p.CreatedAt,
	}
}

// LocalProduct — карточка каталога. Движок читает её, но не пишет.
type LocalProduct struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	Name     string    `gorm:"size:500;not null" json:"name"`
	EAN      string    `gorm:"size:14;index" json:"ean"`
	SKU      string    `gorm:"size:100;index" json:"sku"`
	ImageURL string    `gorm:"size:1000" json:"image_url"`
	IsActive *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p *LocalProduct) ToModel() model.LocalProduct {
	return model.LocalProduct{ID: p.ID, Name: p.Name, EAN: p.EAN, SKU: p.SKU, ImageURL: p.ImageURL}
}

// MatchingGroup — кластер эквивалентных листингов, опционально привязанный
// к карточке каталога. Version — оптимистическая блокировка: два
// одновременных confirm не пройдут оба.
type MatchingGroup struct {
	ID                   int64           `gorm:"primaryKey" json:"id"`
	DisplayName          string          `gorm:"size:500;not null" json:"display_name"`
	ImageURL             string          `gorm:"size:1000" json:"image_url"`
	LocalProductID       *int64          `gorm:"index" json:"local_product_id"`
	Method               string          `gorm:"size:16;not null;default:manual" json:"method"`
	Status               string          `gorm:"size:16;not null;default:pending;index" json:"status"`
	MemberCount          int             `gorm:"not null;default:0" json:"member_count"`
	BestPrice            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"best_price"`
	BestPriceCurrency    string          `gorm:"size:3" json:"best_price_currency"`
	BestPriceSupplierRef string          `gorm:"size:100" json:"best_price_supplier_ref"`
	Version              int64           `gorm:"not null;default:0" json:"-"`
	IsActive             *bool           `gorm:"not null;default:true" json:"is_active"`
	ConfirmedBy          string          `gorm:"size:100" json:"confirmed_by"`
	ConfirmedAt          *time.Time      `json:"confirmed_at"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MatchingScore — объяснимость: из чего сложился confidence пары.
// Append-only; пересчёт пишет новую строку, старую не трогает.
type MatchingScore struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	RawProductID   int64     `gorm:"index;not null" json:"raw_product_id"`
	LocalProductID int64     `gorm:"index;not null" json:"local_product_id"`
	Lexical        float64   `json:"lexical"`
	Visual         *float64  `json:"visual"` // nil — сигнал был недоступен
	Confidence     float64   `json:"confidence"`
	Method         string    `gorm:"size:16" json:"method"`
	ComputedAt     time.Time `gorm:"autoCreateTime;index" json:"computed_at"`
}

// EliminatedSuggestion — вечное "больше не предлагать" для пары.
// Уникальный составной индекс даёт at-most-once при конкурентных вставках.
type EliminatedSuggestion struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	RawProductID   int64     `gorm:"not null;uniqueIndex:uniq_elimination_pair,priority:1" json:"raw_product_id"`
	LocalProductID int64     `gorm:"not null;uniqueIndex:uniq_elimination_pair,priority:2" json:"local_product_id"`
	EliminatedBy   string    `gorm:"size:100" json:"eliminated_by"`
	Reason         string    `gorm:"size:500" json:"reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PriceHistory — append-only снимки цены по сырому товару.
type PriceHistory struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	RawProductID int64           `gorm:"index;not null" json:"raw_product_id"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	Currency     string          `gorm:"size:3;not null" json:"currency"`
	ObservedAt   time.Time       `gorm:"autoCreateTime" json:"observed_at"`
}
