package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

// Settlement применяет подтверждение оплаты к подписке: платёж проводится ровно
// один раз, срок продлевается, при отсутствии конфига — провижинится.
type Settlement struct {
	store    *db.Store
	manager  *vpn.Manager
	notifier notify.Notifier
	now      func() time.Time
}

func NewSettlement(store *db.Store, manager *vpn.Manager, notifier notify.Notifier) *Settlement {
	return &Settlement{store: store, manager: manager, notifier: notifier, now: time.Now}
}

// Apply обрабатывает settlement-callback. Повторная доставка того же
// корреляционного токена — no-op: guard в Store пропускает продление только
// для платежа в статусе pending. Ошибки провижининга после успешной оплаты
// не отменяют платёж: деньги получены, выдача услуги ретраится отдельно.
func (s *Settlement) Apply(ctx context.Context, uniquePayload, providerPaymentID string) error {
	defer logger.NotifyOnPanic("settlement.Apply")

	pay, err := s.store.SettlePayment(uniquePayload, providerPaymentID)
	if errors.Is(err, errs.ErrDuplicateSettlement) {
		logger.Info("settlement: duplicate callback ignored", zap.String("unique_payload", uniquePayload))
		return nil
	}
	if errors.Is(err, errs.ErrNotFound) {
		logger.NotifyAdmin("Settlement по неизвестному платежу: " + uniquePayload)
		return err
	}
	if err != nil {
		return fmt.Errorf("settle payment: %w", err)
	}

	user, err := s.store.GetUserByID(pay.UserID)
	if err != nil {
		logger.NotifyAdmin(fmt.Sprintf("Платёж %d проведён, но пользователь %d не найден", pay.ID, pay.UserID))
		return err
	}

	newEnd := subscription.Extend(user.EndDate, pay.Months, s.now())
	if err := s.store.UpdateEndDate(user.TelegramID, newEnd); err != nil {
		logger.NotifyAdmin(fmt.Sprintf("Не удалось продлить подписку %s после оплаты: %v", user.TelegramID, err))
		return err
	}
	logger.Info("subscription extended",
		zap.String("telegram_id", user.TelegramID),
		zap.Int("months", pay.Months),
		zap.Time("end_date", newEnd),
	)

	if _, err := s.manager.Config(user.TelegramID); errors.Is(err, errs.ErrNotFound) {
		_, raw, perr := s.manager.Provision(ctx, user.TelegramID)
		if perr != nil {
			// Платёж остаётся проведённым, пользователю — retryable-сообщение.
			logger.Error("settlement: provision failed", zap.String("telegram_id", user.TelegramID), zap.Error(perr))
			logger.NotifyAdmin(fmt.Sprintf("Оплата %s прошла, но конфиг не создан: %v", user.TelegramID, perr))
			s.notifier.Send(user.TelegramID,
				"Оплата получена, но конфигурация пока не создана. Запросите её командой /getconfig или обратитесь в поддержку.")
			return nil
		}
		if derr := s.notifier.SendDocument(user.TelegramID, user.TelegramID+".conf", []byte(raw),
			"Ваша VPN-конфигурация готова"); derr != nil {
			logger.Error("settlement: config delivery failed", zap.String("telegram_id", user.TelegramID), zap.Error(derr))
		}
	}

	s.notifier.Send(user.TelegramID,
		fmt.Sprintf("✅ Оплата получена. Подписка активна до %s.", newEnd.Format("02.01.2006")))
	logger.NotifyAdmin(fmt.Sprintf("Оплата: %s, %d мес., %d₽", user.TelegramID, pay.Months, pay.Amount))
	return nil
}
