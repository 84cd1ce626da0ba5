package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/payments"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

func (b *Bot) handleBuy(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "💰 Выберите срок подписки:")
	msg.ReplyMarkup = GetPlansKeyboard()
	b.api.Send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	if !strings.HasPrefix(data, "buy_") {
		b.api.Request(tgbotapi.NewCallback(cb.ID, ""))
		return
	}
	months, err := strconv.Atoi(strings.TrimPrefix(data, "buy_"))
	if err != nil {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Неверный формат выбора"))
		return
	}
	plan, ok := payments.PlanByMonths(months)
	if !ok {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Выбранный срок недоступен"))
		return
	}

	telegramID := strconv.FormatInt(cb.From.ID, 10)
	user, err := b.store.EnsureUser(telegramID, displayName(cb.From))
	if err != nil {
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Внутренняя ошибка, попробуйте позже"))
		return
	}

	if b.providerToken != "" {
		b.sendNativeInvoice(cb, user, plan)
		return
	}

	// Redirect-сценарий: ссылка на оплату YooKassa.
	uniquePayload, url, err := b.gateway.CreateInvoice(telegramID, plan)
	if err != nil {
		logger.Error("create invoice failed", zap.String("telegram_id", telegramID), zap.Error(err))
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Не удалось создать платёж, попробуйте позже"))
		return
	}
	pay := db.Payment{
		UserID:        user.ID,
		Amount:        plan.Price,
		Months:        plan.Months,
		RawPayload:    telegramID + "-" + strconv.Itoa(plan.Months) + "-" + strconv.Itoa(plan.Price),
		UniquePayload: uniquePayload,
	}
	if err := b.store.CreatePayment(&pay); err != nil {
		logger.Error("create payment record failed", zap.String("unique_payload", uniquePayload), zap.Error(err))
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Внутренняя ошибка, попробуйте позже"))
		return
	}
	b.reply(cb.Message.Chat.ID, "Ссылка на оплату: "+url)
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Платёж создан"))
}

// sendNativeInvoice — оплата внутри Telegram. Payload инвойса несёт
// корреляционный токен, successful_payment вернёт его обратно.
func (b *Bot) sendNativeInvoice(cb *tgbotapi.CallbackQuery, user db.User, plan payments.Plan) {
	uniquePayload := uuid.NewString()
	pay := db.Payment{
		UserID:        user.ID,
		Amount:        plan.Price,
		Months:        plan.Months,
		RawPayload:    user.TelegramID + "-" + strconv.Itoa(plan.Months) + "-" + strconv.Itoa(plan.Price),
		UniquePayload: uniquePayload,
	}
	if err := b.store.CreatePayment(&pay); err != nil {
		logger.Error("create payment record failed", zap.String("unique_payload", uniquePayload), zap.Error(err))
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Внутренняя ошибка, попробуйте позже"))
		return
	}
	invoice := tgbotapi.NewInvoice(
		cb.Message.Chat.ID,
		"Покупка VPN на "+strconv.Itoa(plan.Months)+" мес.",
		"Подписка на VPN",
		uniquePayload,
		b.providerToken,
		"vpn",
		"RUB",
		[]tgbotapi.LabeledPrice{{Label: "Подписка VPN", Amount: plan.Price * 100}},
	)
	if _, err := b.api.Send(invoice); err != nil {
		logger.Error("send invoice failed", zap.String("telegram_id", user.TelegramID), zap.Error(err))
		b.api.Request(tgbotapi.NewCallback(cb.ID, "Не удалось выставить счёт"))
		return
	}
	b.api.Request(tgbotapi.NewCallback(cb.ID, "Счёт выставлен"))
}

func (b *Bot) handlePreCheckout(q *tgbotapi.PreCheckoutQuery) {
	if _, err := b.api.Request(tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: q.ID,
		OK:                 true,
	}); err != nil {
		logger.Error("pre-checkout answer failed", zap.Error(err))
	}
}

func (b *Bot) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	sp := msg.SuccessfulPayment
	logger.Info("successful payment received",
		zap.Int64("from", msg.From.ID),
		zap.String("payload", sp.InvoicePayload),
	)
	if err := b.settlement.Apply(ctx, sp.InvoicePayload, sp.ProviderPaymentChargeID); err != nil {
		logger.Error("settlement from bot failed", zap.String("payload", sp.InvoicePayload), zap.Error(err))
		b.reply(msg.Chat.ID, "Оплата получена, но активация не завершена. Обратитесь в поддержку.")
	}
}

// handleTrial активирует пробный период: один раз и только при отсутствии
// действующей подписки.
func (b *Bot) handleTrial(ctx context.Context, msg *tgbotapi.Message, telegramID string) {
	user, err := b.store.GetUserByTelegramID(telegramID)
	if err != nil {
		b.reply(msg.Chat.ID, "Отправьте /start и попробуйте снова.")
		return
	}
	now := nowFn()
	if !subscription.TrialEligible(user, now) {
		b.reply(msg.Chat.ID, "Пробный период недоступен: он уже использован или подписка активна.")
		return
	}
	endDate := subscription.Day(now).AddDate(0, 0, subscription.TrialDays)
	if err := b.store.UpdateEndDate(telegramID, endDate); err != nil {
		b.reply(msg.Chat.ID, "Внутренняя ошибка, попробуйте позже.")
		return
	}
	if err := b.store.MarkTrialUsed(telegramID); err != nil {
		logger.Error("mark trial used failed", zap.String("telegram_id", telegramID), zap.Error(err))
	}

	cfg, err := b.manager.Config(telegramID)
	switch {
	case err == nil:
		b.sendConfig(telegramID, vpn.Render(cfg))
	case errors.Is(err, errs.ErrNotFound):
		_, raw, perr := b.manager.Provision(ctx, telegramID)
		if perr != nil {
			logger.Error("trial: provision failed", zap.String("telegram_id", telegramID), zap.Error(perr))
			b.reply(msg.Chat.ID, "Пробный период активирован, но конфигурация не создана. Запросите её: /getconfig")
			return
		}
		b.sendConfig(telegramID, raw)
	}
	b.reply(msg.Chat.ID, "🧪 Пробный период активирован до "+endDate.Format("02.01.2006"))
}
