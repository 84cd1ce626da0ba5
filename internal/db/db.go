package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store — репозиторий над gorm. Все операции ядра ходят в БД только через него.
type Store struct {
	db *gorm.DB
}

func NewStore(dsn string) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s := &Store{db: gdb}
	if err := s.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewStoreWithDB оборачивает готовое соединение. Используется в тестах с sqlite.
func NewStoreWithDB(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&User{}, &Config{}, &Payment{})
}
