package notify

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/logger"
)

// TelegramNotifier — реализация Notifier поверх Bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

func (n *TelegramNotifier) Send(telegramID string, text string) error {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram id %q: %w", telegramID, err)
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send to %s: %w", telegramID, err)
	}
	return nil
}

// SendDocument отправляет файл (конфиг) с подписью.
func (n *TelegramNotifier) SendDocument(telegramID string, filename string, data []byte, caption string) error {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram id %q: %w", telegramID, err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	if _, err := n.bot.Send(doc); err != nil {
		return fmt.Errorf("send document to %s: %w", telegramID, err)
	}
	return nil
}

// Broadcast рассылает текст списку получателей и возвращает счётчики.
func (n *TelegramNotifier) Broadcast(telegramIDs []string, text string) BroadcastResult {
	var res BroadcastResult
	for _, id := range telegramIDs {
		if err := n.Send(id, text); err != nil {
			logger.Error("broadcast send failed", zap.String("telegram_id", id), zap.Error(err))
			res.Failed++
			continue
		}
		res.Sent++
	}
	logger.Info("broadcast finished", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res
}
