package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken        string
	AdminTelegramID int64
	DatabaseURL     string

	YooKassaShopID string
	YooKassaSecret string
	// Токен провайдера для нативных Telegram-инвойсов.
	YooKassaProviderToken string

	// Параметры AmneziaWG: конфиг демона внутри контейнера и сам контейнер.
	AWGConfigFile      string
	AWGDockerContainer string

	// Скрипты, которые реально мутируют VPN-демон.
	RotatorScript   string // принимает JSON-ростер на stdin
	GeneratorScript string // генерирует peer-конфиг для нового клиента

	// Директория, куда генератор кладёт users/<id>/<id>.conf
	ClientsDir string

	Endpoint string
	DNS      string
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.AdminTelegramID = parseInt64(os.Getenv("ADMIN_TELEGRAM_ID"))
	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")
	AppCfg.YooKassaShopID = os.Getenv("YOOKASSA_SHOP_ID")
	AppCfg.YooKassaSecret = os.Getenv("YOOKASSA_SECRET_KEY")
	AppCfg.YooKassaProviderToken = os.Getenv("YOOKASSA_PROVIDER_TOKEN")
	AppCfg.AWGConfigFile = getEnv("AWG_CONFIG_FILE", "/opt/amnezia/awg/wg0.conf")
	AppCfg.AWGDockerContainer = getEnv("AWG_DOCKER_CONTAINER", "amnezia-awg")
	AppCfg.RotatorScript = getEnv("ROTATOR_SCRIPT", "./updatepresharekey.sh")
	AppCfg.GeneratorScript = getEnv("GENERATOR_SCRIPT", "./newclient.sh")
	AppCfg.ClientsDir = getEnv("CLIENTS_DIR", "users")
	AppCfg.Endpoint = os.Getenv("ENDPOINT")
	AppCfg.DNS = getEnv("DNS", "1.1.1.1, 1.0.0.1")

	if AppCfg.BotToken == "" || AppCfg.AdminTelegramID == 0 || AppCfg.DatabaseURL == "" {
		log.Fatal("Critical environment variables are missing. Bot will exit.")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
