package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

// Sweeper — ежедневный деактивационный прогон. Ростер строится декларативно:
// "вот кто сейчас должен быть отозван", а не "кто истёк со вчера". Поэтому
// пропущенный прогон ничего не теряет — следующий пересоберёт всё заново.
type Sweeper struct {
	store    *db.Store
	manager  *vpn.Manager
	notifier notify.Notifier
	now      func() time.Time
}

func NewSweeper(store *db.Store, manager *vpn.Manager, notifier notify.Notifier) *Sweeper {
	return &Sweeper{store: store, manager: manager, notifier: notifier, now: time.Now}
}

// Run собирает полный ростер и подаёт его ротатору одним вызовом.
// Чтение из БД завершается до внешнего вызова: на время docker exec никакие
// блокировки хранилища не удерживаются. При ошибке ротатора строки в БД
// не меняются — батч целиком уйдёт на повтор следующим прогоном.
func (s *Sweeper) Run(ctx context.Context) error {
	defer logger.NotifyOnPanic("sweeper.Run")
	now := s.now()

	users, err := s.store.NonUnlimitedUsers()
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	configs, err := s.store.ConfigsByUserIDs(ids)
	if err != nil {
		return fmt.Errorf("load configs: %w", err)
	}

	roster := s.manager.BuildRoster(users, configs, now)
	if len(roster) > 0 {
		if err := s.manager.Apply(ctx, roster); err != nil {
			logger.Error("sweep: rotator failed", zap.Error(err))
			logger.NotifyAdmin("Деактивационный прогон не применён: " + err.Error())
			return err
		}
	}

	deactivated := 0
	for _, u := range users {
		if !subscription.IsActive(u, now) {
			if _, ok := configs[u.ID]; ok {
				deactivated++
			}
		}
	}
	logger.Info("sweep finished",
		zap.Int("roster", len(roster)),
		zap.Int("deactivated", deactivated),
	)

	// Уведомляем только вчера истёкших: давно истёкшие получили своё в день истечения.
	yesterday := subscription.Day(now).AddDate(0, 0, -1)
	expired, err := s.store.UsersExpiringOn([]time.Time{yesterday})
	if err != nil {
		logger.Error("sweep: load expired users", zap.Error(err))
		return nil
	}
	for _, u := range expired {
		if err := s.notifier.Send(u.TelegramID,
			"Ваша подписка завершена. Для продления воспользуйтесь командой /buy."); err != nil {
			logger.Error("sweep: expiry notice failed", zap.String("telegram_id", u.TelegramID), zap.Error(err))
		}
	}
	if len(expired) > 0 {
		logger.NotifyAdmin(fmt.Sprintf("Деактивация: %d пользователей истекло вчера, ростер %d записей", len(expired), len(roster)))
	}
	return nil
}
