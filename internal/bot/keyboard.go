package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RomanCartman/amnezia-bot/internal/admin"
	"github.com/RomanCartman/amnezia-bot/internal/payments"
)

func GetReplyKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	if admin.IsAdmin(userID) {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_backup"),
				tgbotapi.NewKeyboardButton("/admin_broadcast"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_adduser"),
				tgbotapi.NewKeyboardButton("/admin_deluser"),
				tgbotapi.NewKeyboardButton("/admin_unlimited"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_users"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/buy"),
			tgbotapi.NewKeyboardButton("/profile"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/getconfig"),
			tgbotapi.NewKeyboardButton("/trial"),
		),
	)
}

// GetPlansKeyboard — inline-кнопки выбора срока подписки.
func GetPlansKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range payments.Plans {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Label(), "buy_"+itoa(p.Months)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
