package db

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

// GetUserByTelegramID возвращает пользователя или errs.ErrNotFound.
func (s *Store) GetUserByTelegramID(telegramID string) (User, error) {
	var user User
	err := s.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, errs.ErrNotFound
	}
	return user, err
}

// GetUserByID возвращает пользователя по первичному ключу или errs.ErrNotFound.
func (s *Store) GetUserByID(id uint) (User, error) {
	var user User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, errs.ErrNotFound
	}
	return user, err
}

// EnsureUser создаёт пользователя при первом контакте с ботом.
// Повторный вызов безопасен: существующая запись не перетирается.
func (s *Store) EnsureUser(telegramID, name string) (User, error) {
	user := User{TelegramID: telegramID, Name: name}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoNothing: true,
	}).Create(&user).Error
	if err != nil {
		return User{}, err
	}
	return s.GetUserByTelegramID(telegramID)
}

func (s *Store) UpdateUserName(telegramID, name string) error {
	return s.db.Model(&User{}).Where("telegram_id = ?", telegramID).Update("name", name).Error
}

// UpdateEndDate сохраняет новую дату окончания подписки.
// Сама дата вычисляется движком подписок, здесь только персистентность.
func (s *Store) UpdateEndDate(telegramID string, endDate time.Time) error {
	res := s.db.Model(&User{}).Where("telegram_id = ?", telegramID).Update("end_date", endDate)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) SetUnlimited(telegramID string, unlimited bool) error {
	res := s.db.Model(&User{}).Where("telegram_id = ?", telegramID).Update("is_unlimited", unlimited)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// MarkTrialUsed — монотонный флаг, обратно не сбрасывается.
func (s *Store) MarkTrialUsed(telegramID string) error {
	return s.db.Model(&User{}).Where("telegram_id = ?", telegramID).Update("has_used_trial", true).Error
}

// UsersExpiredAsOf возвращает всех не-безлимитных пользователей, чья подписка
// закончилась не позже cutoff. Сравнение через <= делает ежедневный прогон
// самовосстанавливающимся: пропущенный день не теряет пользователей.
func (s *Store) UsersExpiredAsOf(cutoff time.Time) ([]User, error) {
	var users []User
	err := s.db.
		Where("is_unlimited = ? AND end_date IS NOT NULL AND end_date <= ?", false, cutoff).
		Find(&users).Error
	return users, err
}

// UsersExpiringOn возвращает пользователей, у которых подписка заканчивается
// ровно в один из переданных дней. Пользователи без end_date не попадают никуда —
// это отсутствие подписки, а не ошибка.
func (s *Store) UsersExpiringOn(dates []time.Time) ([]User, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	var users []User
	err := s.db.
		Where("is_unlimited = ? AND end_date IS NOT NULL AND end_date IN ?", false, dates).
		Find(&users).Error
	return users, err
}

// NonUnlimitedUsers — полный список пользователей, участвующих в деактивационном
// ростере. Безлимитные в ростер не входят: их ключи не ротируются по времени.
func (s *Store) NonUnlimitedUsers() ([]User, error) {
	var users []User
	err := s.db.Where("is_unlimited = ?", false).Find(&users).Error
	return users, err
}

// AllUsers — полный список пользователей (для админских рассылок).
func (s *Store) AllUsers() ([]User, error) {
	var users []User
	err := s.db.Find(&users).Error
	return users, err
}

// UsersWithoutName — для косметической починки имён по актуальному списку пиров.
func (s *Store) UsersWithoutName() ([]User, error) {
	var users []User
	err := s.db.Where("name IS NULL OR name = ''").Find(&users).Error
	return users, err
}

func (s *Store) CountUsers() (int64, error) {
	var count int64
	err := s.db.Model(&User{}).Count(&count).Error
	return count, err
}
