package db

import "time"

// Статусы платежа. Переход pending -> success/failed происходит ровно один раз.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// User — подписчик VPN. Никогда не удаляется жёстко: конфиги и платежи
// ссылаются на него.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	TelegramID   string `gorm:"uniqueIndex;not null"`
	Name         string
	EndDate      *time.Time `gorm:"type:date"`
	IsUnlimited  bool       `gorm:"default:false"`
	HasUsedTrial bool       `gorm:"default:false"`
	CreatedAt    time.Time
}

// Config — единственная VPN-конфигурация пользователя.
// Уникальный индекс по user_id закрепляет правило "один живой конфиг на пользователя"
// на уровне схемы, а не только приложения.
type Config struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex;not null"`

	// Секция [Interface]
	PrivateKey string `gorm:"not null"`
	Address    string `gorm:"not null"`
	DNS        *string

	// Обфускационные параметры AmneziaWG. Ядро их не интерпретирует,
	// переносит как есть из сгенерированного файла.
	Jc   *int
	Jmin *int
	Jmax *int
	S1   *int
	S2   *int
	H1   *int
	H2   *int
	H3   *int
	H4   *int

	// Секция [Peer]
	PublicKey           string `gorm:"not null"`
	PresharedKey        *string
	AllowedIPs          *string
	Endpoint            *string
	PersistentKeepalive *int

	// Заранее сгенерированный секрет для отзыва доступа. Должен быть готов
	// до первого деактивационного прогона, чтобы sweep не генерировал ключи синхронно.
	DeactivatePresharedKey string `gorm:"not null"`

	CreatedAt time.Time
}

// Payment — одна попытка покупки/продления.
type Payment struct {
	ID                uint `gorm:"primaryKey"`
	UserID            uint `gorm:"index;not null"`
	Amount            int
	Months            int
	ProviderPaymentID *string
	RawPayload        string
	// Корреляционный токен, выбранный ботом при выставлении счёта.
	// По нему асинхронный callback провайдера находит платёж.
	UniquePayload string `gorm:"uniqueIndex;not null"`
	Status        string `gorm:"default:pending"`
	CreatedAt     time.Time
}
