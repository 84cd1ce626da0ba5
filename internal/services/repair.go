package services

import (
	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
)

// NameResolver отдаёт актуальное отображаемое имя пира.
// Реализуется в слое бота через Telegram API.
type NameResolver interface {
	ResolveName(telegramID string) (string, error)
}

// NameRepair — частая лёгкая задача: подтягивает отсутствующие имена
// пользователей к каноническому списку пиров. Чисто косметическая,
// на состояние подписок не влияет.
type NameRepair struct {
	store    *db.Store
	resolver NameResolver
}

func NewNameRepair(store *db.Store, resolver NameResolver) *NameRepair {
	return &NameRepair{store: store, resolver: resolver}
}

func (r *NameRepair) Run() {
	defer logger.NotifyOnPanic("nameRepair.Run")
	users, err := r.store.UsersWithoutName()
	if err != nil {
		logger.Error("name repair: query failed", zap.Error(err))
		return
	}
	repaired := 0
	for _, u := range users {
		name, err := r.resolver.ResolveName(u.TelegramID)
		if err != nil || name == "" {
			continue
		}
		if err := r.store.UpdateUserName(u.TelegramID, name); err != nil {
			logger.Error("name repair: update failed", zap.String("telegram_id", u.TelegramID), zap.Error(err))
			continue
		}
		repaired++
	}
	if repaired > 0 {
		logger.Info("name repair finished", zap.Int("repaired", repaired))
	}
}
