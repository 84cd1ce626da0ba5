package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
)

// WarningDays — за сколько дней до конца подписки предупреждать.
// Точное совпадение дат: при запуске раз в сутки каждый пользователь
// получает ровно одно предупреждение на ступень.
var WarningDays = []int{10, 5, 2}

// ExpiryNotifier рассылает предупреждения о скором окончании подписки.
type ExpiryNotifier struct {
	store    *db.Store
	notifier notify.Notifier
	now      func() time.Time
}

func NewExpiryNotifier(store *db.Store, notifier notify.Notifier) *ExpiryNotifier {
	return &ExpiryNotifier{store: store, notifier: notifier, now: time.Now}
}

func (n *ExpiryNotifier) Run() {
	defer logger.NotifyOnPanic("expiryNotifier.Run")
	now := n.now()
	sent, failed := 0, 0

	for _, days := range WarningDays {
		target := subscription.Day(now).AddDate(0, 0, days)
		users, err := n.store.UsersExpiringOn([]time.Time{target})
		if err != nil {
			logger.Error("expiry notifier: query failed", zap.Int("days", days), zap.Error(err))
			continue
		}
		for _, u := range users {
			text := fmt.Sprintf("Привет, %s! Ваша подписка заканчивается %s (через %d дн.). Продлить: /buy",
				u.Name, target.Format("02.01.2006"), days)
			if err := n.notifier.Send(u.TelegramID, text); err != nil {
				logger.Error("expiry notifier: send failed", zap.String("telegram_id", u.TelegramID), zap.Error(err))
				failed++
				continue
			}
			sent++
		}
	}
	logger.Info("expiry notifications finished", zap.Int("sent", sent), zap.Int("failed", failed))
}
