package db

import (
	"errors"

	"gorm.io/gorm"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

// CreateConfig сохраняет конфигурацию пользователя. Уникальный индекс по user_id
// гарантирует, что второй конкурентный вызов получит errs.ErrAlreadyProvisioned,
// а не вторую строку.
func (s *Store) CreateConfig(cfg *Config) error {
	err := s.db.Create(cfg).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.ErrAlreadyProvisioned
	}
	return err
}

// GetConfigByTelegramID возвращает конфигурацию пользователя или errs.ErrNotFound.
func (s *Store) GetConfigByTelegramID(telegramID string) (Config, error) {
	var cfg Config
	err := s.db.
		Joins("JOIN users ON users.id = configs.user_id").
		Where("users.telegram_id = ?", telegramID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Config{}, errs.ErrNotFound
	}
	return cfg, err
}

func (s *Store) GetConfigByUserID(userID uint) (Config, error) {
	var cfg Config
	err := s.db.Where("user_id = ?", userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Config{}, errs.ErrNotFound
	}
	return cfg, err
}

// ConfigsByUserIDs возвращает конфиги пачкой для построения ростера.
func (s *Store) ConfigsByUserIDs(userIDs []uint) (map[uint]Config, error) {
	if len(userIDs) == 0 {
		return map[uint]Config{}, nil
	}
	var configs []Config
	if err := s.db.Where("user_id IN ?", userIDs).Find(&configs).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uint]Config, len(configs))
	for _, c := range configs {
		byUser[c.UserID] = c
	}
	return byUser, nil
}

// DeleteUserConfigs удаляет конфигурации пользователя. Вызывается только при
// явном удалении пользователя админом; деактивация конфиги не трогает.
func (s *Store) DeleteUserConfigs(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&Config{}).Error
}

func (s *Store) CountConfigs() (int64, error) {
	var count int64
	err := s.db.Model(&Config{}).Count(&count).Error
	return count, err
}
