package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"github.com/RomanCartman/amnezia-bot/config"
	"github.com/RomanCartman/amnezia-bot/internal/admin"
	"github.com/RomanCartman/amnezia-bot/internal/bot"
	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/payments"
	"github.com/RomanCartman/amnezia-bot/internal/services"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

func main() {
	config.LoadConfig()
	cfg := config.AppCfg

	store, err := db.NewStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	botapi, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	admin.Init(cfg.AdminTelegramID)
	logger.InitNotifier(botapi, cfg.AdminTelegramID)

	// Внешние коллабораторы: генератор конфигов и ротатор ключей.
	configStore := vpn.NewScriptConfigStore(cfg.GeneratorScript, cfg.AWGDockerContainer, cfg.ClientsDir)
	rotator := vpn.NewScriptRotator(cfg.RotatorScript, cfg.AWGConfigFile, cfg.AWGDockerContainer)
	manager := vpn.NewManager(store, configStore, rotator)

	notifier := notify.NewTelegramNotifier(botapi)
	gateway := payments.NewYooKassaGateway(cfg.YooKassaShopID, cfg.YooKassaSecret)
	settlement := services.NewSettlement(store, manager, notifier)
	adminHandlers := admin.NewHandlers(store, manager, notifier)

	tgBot := bot.New(botapi, store, manager, notifier, gateway, settlement, adminHandlers,
		cfg.YooKassaProviderToken, cfg.DatabaseURL)

	sweeper := services.NewSweeper(store, manager, notifier)
	expiryNotifier := services.NewExpiryNotifier(store, notifier)
	nameRepair := services.NewNameRepair(store, tgBot)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := cron.New()
	// Ежедневный деактивационный прогон: полный ростер уходит в ротатор.
	c.AddFunc("30 9 * * *", func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Printf("sweep failed: %v", err)
		}
	})
	// Предупреждения об окончании подписки (раз в сутки в 10:00).
	c.AddFunc("0 10 * * *", expiryNotifier.Run)
	// Косметическая починка имён по списку пиров.
	c.AddFunc("@every 1m", nameRepair.Run)
	// Автоматический бэкап БД раз в сутки.
	c.AddFunc("0 3 * * *", func() {
		admin.AutoBackupDatabase(cfg.DatabaseURL)
	})
	c.Start()
	defer c.Stop()

	// Webhook-сервер для settlement-callback'ов YooKassa.
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/yookassa/webhook", payments.WebhookHandler(cfg.YooKassaSecret, settlement))
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		log.Println("Запуск webhook-сервера на :8080")
		if err := http.ListenAndServe(":8080", mux); err != nil {
			log.Fatalf("Webhook server error: %v", err)
		}
	}()

	// Запуск Telegram-бота (polling)
	tgBot.Start(ctx)
}
