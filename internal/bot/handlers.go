package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/admin"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer logger.NotifyOnPanic("bot.HandleUpdate")

	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	telegramID := strconv.FormatInt(msg.From.ID, 10)

	// Первый контакт создаёт пользователя; повторные вызовы безопасны.
	if _, err := b.store.EnsureUser(telegramID, displayName(msg.From)); err != nil {
		logger.Error("ensure user failed", zap.String("telegram_id", telegramID), zap.Error(err))
	}

	if msg.SuccessfulPayment != nil {
		b.handleSuccessfulPayment(ctx, msg)
		return
	}
	if !msg.IsCommand() {
		return
	}

	cmd := "/" + msg.Command()
	if b.rl.IsLimited(msg.From.ID, cmd) {
		b.reply(msg.Chat.ID, "Слишком часто. Попробуйте чуть позже.")
		return
	}

	switch msg.Command() {
	case "start", "help":
		reply := tgbotapi.NewMessage(msg.Chat.ID,
			"Привет! Я выдаю VPN-конфигурации.\n/buy — купить подписку\n/trial — пробный период\n/profile — ваш профиль\n/getconfig — получить конфигурацию")
		reply.ReplyMarkup = GetReplyKeyboard(msg.From.ID)
		b.api.Send(reply)
	case "profile":
		b.handleProfile(msg, telegramID)
	case "buy":
		b.handleBuy(msg.Chat.ID)
	case "trial":
		b.handleTrial(ctx, msg, telegramID)
	case "getconfig":
		b.handleGetConfig(ctx, msg, telegramID)
	case "admin_stats":
		b.requireAdmin(msg, func() {
			text, err := b.adminH.Stats()
			if err != nil {
				b.reply(msg.Chat.ID, "Ошибка: "+err.Error())
				return
			}
			b.reply(msg.Chat.ID, text)
		})
	case "admin_users":
		b.requireAdmin(msg, func() {
			text, err := b.adminH.ListUsers(msg.From.ID)
			if err != nil {
				b.reply(msg.Chat.ID, "Ошибка: "+err.Error())
				return
			}
			b.reply(msg.Chat.ID, text)
		})
	case "admin_backup":
		b.requireAdmin(msg, func() {
			go admin.AutoBackupDatabase(b.backupDSN)
			b.reply(msg.Chat.ID, "Бэкап запущен.")
		})
	case "admin_broadcast":
		b.requireAdmin(msg, func() {
			text := strings.TrimSpace(msg.CommandArguments())
			if text == "" {
				b.reply(msg.Chat.ID, "Использование: /admin_broadcast <текст>")
				return
			}
			res, err := b.adminH.Broadcast(msg.From.ID, text)
			if err != nil {
				b.reply(msg.Chat.ID, "Ошибка рассылки: "+err.Error())
				return
			}
			b.reply(msg.Chat.ID, fmt.Sprintf("Рассылка: отправлено %d, ошибок %d", res.Sent, res.Failed))
		})
	case "admin_adduser":
		b.requireAdmin(msg, func() {
			args := strings.Fields(msg.CommandArguments())
			if len(args) == 0 {
				b.reply(msg.Chat.ID, "Использование: /admin_adduser <telegram_id> [имя]")
				return
			}
			name := ""
			if len(args) > 1 {
				name = strings.Join(args[1:], " ")
			}
			raw, err := b.adminH.AddUser(ctx, msg.From.ID, args[0], name)
			if err != nil {
				b.reply(msg.Chat.ID, "Не удалось создать пользователя: "+err.Error())
				return
			}
			b.notifier.SendDocument(strconv.FormatInt(msg.Chat.ID, 10), args[0]+".conf", []byte(raw),
				"Конфигурация пользователя "+args[0])
		})
	case "admin_deluser":
		b.requireAdmin(msg, func() {
			id := strings.TrimSpace(msg.CommandArguments())
			if id == "" {
				b.reply(msg.Chat.ID, "Использование: /admin_deluser <telegram_id>")
				return
			}
			if err := b.adminH.RemoveUser(ctx, msg.From.ID, id); err != nil {
				b.reply(msg.Chat.ID, "Ошибка удаления: "+err.Error())
				return
			}
			b.reply(msg.Chat.ID, "Пользователь "+id+" удалён.")
		})
	case "admin_unlimited":
		b.requireAdmin(msg, func() {
			args := strings.Fields(msg.CommandArguments())
			if len(args) != 2 {
				b.reply(msg.Chat.ID, "Использование: /admin_unlimited <telegram_id> <on|off>")
				return
			}
			if err := b.adminH.SetUnlimited(msg.From.ID, args[0], args[1] == "on"); err != nil {
				b.reply(msg.Chat.ID, "Ошибка: "+err.Error())
				return
			}
			b.reply(msg.Chat.ID, "Готово.")
		})
	}
}

func (b *Bot) handleProfile(msg *tgbotapi.Message, telegramID string) {
	user, err := b.store.GetUserByTelegramID(telegramID)
	if err != nil {
		b.reply(msg.Chat.ID, "Пользователь не найден. Отправьте /start.")
		return
	}
	var status string
	switch {
	case user.IsUnlimited:
		status = "♾ Безлимитная"
	case subscription.IsActive(user, nowFn()):
		status = "📅 Активна до " + user.EndDate.Format("02.01.2006")
	default:
		status = "❌ Нет активной подписки"
	}
	trial := "доступен"
	if user.HasUsedTrial {
		trial = "использован"
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("👤 Профиль\n🆔 %s\n%s\n🧪 Пробный период: %s", user.TelegramID, status, trial))
}

// handleGetConfig выдаёт конфигурацию. Для активного пользователя без конфига
// (например, после сбоя провижининга при оплате) — это путь повтора.
func (b *Bot) handleGetConfig(ctx context.Context, msg *tgbotapi.Message, telegramID string) {
	cfg, err := b.manager.Config(telegramID)
	if err == nil {
		b.sendConfig(telegramID, vpn.Render(cfg))
		return
	}
	if !errors.Is(err, errs.ErrNotFound) {
		b.reply(msg.Chat.ID, "Не удалось получить конфигурацию, попробуйте позже.")
		return
	}
	user, uerr := b.store.GetUserByTelegramID(telegramID)
	if uerr != nil || !subscription.IsActive(user, nowFn()) {
		b.reply(msg.Chat.ID, "У вас нет конфигурации. Оформите подписку: /buy")
		return
	}
	_, raw, perr := b.manager.Provision(ctx, telegramID)
	if perr != nil {
		logger.Error("getconfig: provision failed", zap.String("telegram_id", telegramID), zap.Error(perr))
		b.reply(msg.Chat.ID, "Не удалось создать конфигурацию. Попробуйте позже или обратитесь в поддержку.")
		return
	}
	b.sendConfig(telegramID, raw)
}

func (b *Bot) requireAdmin(msg *tgbotapi.Message, fn func()) {
	if !admin.IsAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "Нет прав.")
		return
	}
	fn()
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Error("send reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendConfig(telegramID, raw string) {
	if err := b.notifier.SendDocument(telegramID, telegramID+".conf", []byte(raw),
		"Ваша VPN-конфигурация"); err != nil {
		logger.Error("config delivery failed", zap.String("telegram_id", telegramID), zap.Error(err))
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
