package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/admin"
	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/payments"
	"github.com/RomanCartman/amnezia-bot/internal/services"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

// Bot — слой диалога: маршрутизирует апдейты Telegram к сервисам ядра.
type Bot struct {
	api           *tgbotapi.BotAPI
	store         *db.Store
	manager       *vpn.Manager
	notifier      notify.Notifier
	gateway       payments.Gateway
	settlement    *services.Settlement
	adminH        *admin.Handlers
	providerToken string
	backupDSN     string
	rl            *RateLimiter
}

func New(
	api *tgbotapi.BotAPI,
	store *db.Store,
	manager *vpn.Manager,
	notifier notify.Notifier,
	gateway payments.Gateway,
	settlement *services.Settlement,
	adminH *admin.Handlers,
	providerToken string,
	backupDSN string,
) *Bot {
	return &Bot{
		api:           api,
		store:         store,
		manager:       manager,
		notifier:      notifier,
		gateway:       gateway,
		settlement:    settlement,
		adminH:        adminH,
		providerToken: providerToken,
		backupDSN:     backupDSN,
		rl:            NewRateLimiter(),
	}
}

// nowFn выделен для подмены времени в тестах.
var nowFn = time.Now

// Start запускает long polling до отмены контекста.
func (b *Bot) Start(ctx context.Context) {
	logger.Info("bot authorized", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// ResolveName возвращает отображаемое имя чата — для косметической починки имён.
func (b *Bot) ResolveName(telegramID string) (string, error) {
	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return "", err
	}
	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return "", err
	}
	if chat.UserName != "" {
		return chat.UserName, nil
	}
	return chat.FirstName, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
