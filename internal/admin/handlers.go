package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

// Handlers — админские операции над пользователями и их конфигурациями.
type Handlers struct {
	store    *db.Store
	manager  *vpn.Manager
	notifier notify.Notifier
}

func NewHandlers(store *db.Store, manager *vpn.Manager, notifier notify.Notifier) *Handlers {
	return &Handlers{store: store, manager: manager, notifier: notifier}
}

// AddUser заводит пользователя и сразу провижинит ему конфигурацию.
// Если конфиг уже есть — возвращает существующий текст, не создавая второй.
func (h *Handlers) AddUser(ctx context.Context, adminID int64, telegramID, name string) (string, error) {
	logger.LogAdminAction(adminID, "add_user", telegramID)
	if _, err := h.store.EnsureUser(telegramID, name); err != nil {
		return "", err
	}
	_, raw, err := h.manager.Provision(ctx, telegramID)
	if errors.Is(err, errs.ErrAlreadyProvisioned) {
		cfg, gerr := h.manager.Config(telegramID)
		if gerr != nil {
			return "", gerr
		}
		return vpn.Render(cfg), nil
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

// RemoveUser — мягкое удаление: сначала ключ пользователя ротируется на
// deactivate-секрет, затем конфиг удаляется из БД. Запись пользователя и
// история платежей остаются.
func (h *Handlers) RemoveUser(ctx context.Context, adminID int64, telegramID string) error {
	logger.LogAdminAction(adminID, "remove_user", telegramID)
	user, err := h.store.GetUserByTelegramID(telegramID)
	if err != nil {
		return err
	}
	if err := h.manager.Deactivate(ctx, []string{telegramID}); err != nil {
		return err
	}
	if err := h.store.DeleteUserConfigs(user.ID); err != nil {
		return err
	}
	logger.Info("user removed", zap.String("telegram_id", telegramID))
	return nil
}

// SetUnlimited включает/выключает безлимитную подписку.
func (h *Handlers) SetUnlimited(adminID int64, telegramID string, unlimited bool) error {
	logger.LogAdminAction(adminID, "set_unlimited", fmt.Sprintf("%s=%v", telegramID, unlimited))
	return h.store.SetUnlimited(telegramID, unlimited)
}

// Stats — краткая сводка для админа.
func (h *Handlers) Stats() (string, error) {
	users, err := h.store.CountUsers()
	if err != nil {
		return "", err
	}
	configs, err := h.store.CountConfigs()
	if err != nil {
		return "", err
	}
	monthAgo := time.Now().AddDate(0, -1, 0)
	revenue, err := h.store.SumSettledPayments(monthAgo, time.Now())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("👥 Пользователей: %d\n🔑 Конфигураций: %d\n💰 Оплат за 30 дней: %d₽", users, configs, revenue), nil
}

// ListUsers — список пользователей со статусом подписки.
func (h *Handlers) ListUsers(adminID int64) (string, error) {
	logger.LogAdminAction(adminID, "list_users", "")
	users, err := h.store.AllUsers()
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "Пользователей нет.", nil
	}
	now := time.Now()
	var b strings.Builder
	for _, u := range users {
		status := "—"
		switch {
		case u.IsUnlimited:
			status = "безлимит"
		case subscription.IsActive(u, now):
			status = "до " + u.EndDate.Format("02.01.2006")
		case u.EndDate != nil:
			status = "истекла " + u.EndDate.Format("02.01.2006")
		}
		name := u.Name
		if name == "" {
			name = "(без имени)"
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", u.TelegramID, name, status)
	}
	return b.String(), nil
}

// Broadcast рассылает текст всем пользователям.
func (h *Handlers) Broadcast(adminID int64, text string) (notify.BroadcastResult, error) {
	logger.LogAdminAction(adminID, "broadcast", fmt.Sprintf("len=%d", len(text)))
	users, err := h.store.AllUsers()
	if err != nil {
		return notify.BroadcastResult{}, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.TelegramID)
	}
	return h.notifier.Broadcast(ids, text), nil
}
