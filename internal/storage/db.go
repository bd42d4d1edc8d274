// Package storage — реляционный слой: GORM поверх Postgres (прод) или
// SQLite (тесты). Инварианты данных (уникальные пары, soft-delete,
// версия группы) закреплены здесь, на границе хранения.
package storage

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// DB — сырое соединение для транзакций уровня сервиса (groups).
func (s *Store) DB() *gorm.DB { return s.db }

// Open — подключение по DSN. "postgres://..." → Postgres, иначе SQLite
// (файл или file::memory:). TranslateError обязателен: на него завязана
// идемпотентность eliminate (ErrDuplicatedKey).
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "host=") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LocalProduct{},
		&SupplierRawProduct{},
		&MatchingGroup{},
		&MatchingScore{},
		&EliminatedSuggestion{},
		&PriceHistory{},
	)
}
