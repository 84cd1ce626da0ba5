package vpn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
	"github.com/RomanCartman/amnezia-bot/internal/logger"
	"github.com/RomanCartman/amnezia-bot/internal/subscription"
)

// Manager связывает хранилище конфигов с внешними PeerConfigStore и PeerKeyRotator.
// Единственная точка создания Config и единственный канал мутации VPN-демона.
type Manager struct {
	store   *db.Store
	confs   PeerConfigStore
	rotator PeerKeyRotator
}

func NewManager(store *db.Store, confs PeerConfigStore, rotator PeerKeyRotator) *Manager {
	return &Manager{store: store, confs: confs, rotator: rotator}
}

// Provision создаёт VPN-конфигурацию пользователя: генерирует peer во внешнем
// хранилище, парсит текст, заранее готовит deactivate-секрет и сохраняет всё в БД.
// Если конфиг уже есть — errs.ErrAlreadyProvisioned, вызывающий должен был
// сначала проверить Config(). Возвращает сохранённый конфиг и исходный текст файла.
func (m *Manager) Provision(ctx context.Context, telegramID string) (db.Config, string, error) {
	user, err := m.store.GetUserByTelegramID(telegramID)
	if err != nil {
		return db.Config{}, "", err
	}
	if _, err := m.store.GetConfigByUserID(user.ID); err == nil {
		return db.Config{}, "", errs.ErrAlreadyProvisioned
	} else if !errors.Is(err, errs.ErrNotFound) {
		return db.Config{}, "", err
	}

	raw, err := m.confs.Generate(ctx, telegramID)
	if err != nil {
		return db.Config{}, "", err
	}
	pc, err := ParsePeerConfig(raw)
	if err != nil {
		// Ничего не сохраняем: попытка провалена целиком, повтор возможен.
		return db.Config{}, "", err
	}

	// Секрет деактивации генерируется сейчас, чтобы деактивационный прогон
	// никогда не генерировал ключи синхронно.
	deactivateKey, err := GeneratePresharedKey()
	if err != nil {
		return db.Config{}, "", err
	}

	cfg := db.Config{
		UserID:                 user.ID,
		PrivateKey:             pc.PrivateKey,
		Address:                pc.Address,
		DNS:                    pc.DNS,
		Jc:                     pc.Jc,
		Jmin:                   pc.Jmin,
		Jmax:                   pc.Jmax,
		S1:                     pc.S1,
		S2:                     pc.S2,
		H1:                     pc.H1,
		H2:                     pc.H2,
		H3:                     pc.H3,
		H4:                     pc.H4,
		PublicKey:              pc.PublicKey,
		PresharedKey:           pc.PresharedKey,
		AllowedIPs:             pc.AllowedIPs,
		Endpoint:               pc.Endpoint,
		PersistentKeepalive:    pc.PersistentKeepalive,
		DeactivatePresharedKey: deactivateKey,
	}
	if err := m.store.CreateConfig(&cfg); err != nil {
		return db.Config{}, "", err
	}
	logger.Info("config provisioned", zap.String("telegram_id", telegramID), zap.Uint("config_id", cfg.ID))
	return cfg, raw, nil
}

// Config — чистое чтение конфигурации пользователя.
func (m *Manager) Config(telegramID string) (db.Config, error) {
	return m.store.GetConfigByTelegramID(telegramID)
}

// BuildRoster собирает полный декларативный ростер: по одной записи на каждого
// не-безлимитного пользователя с конфигом. Активные получают свой настоящий
// preshared key, неактивные — заранее заготовленный deactivate-секрет.
// Повторная подача того же ростера — no-op на стороне демона, поэтому
// уже деактивированные пользователи спокойно попадают в него снова.
func (m *Manager) BuildRoster(users []db.User, configs map[uint]db.Config, now time.Time) []RosterEntry {
	roster := make([]RosterEntry, 0, len(users))
	for _, u := range users {
		cfg, ok := configs[u.ID]
		if !ok {
			// Пользователь без конфига не имеет пира — нечего ротировать.
			continue
		}
		secret := cfg.DeactivatePresharedKey
		if subscription.IsActive(u, now) {
			if cfg.PresharedKey == nil {
				continue
			}
			secret = *cfg.PresharedKey
		}
		roster = append(roster, RosterEntry{
			ClientName:      u.TelegramID,
			NewPresharedKey: secret,
		})
	}
	return roster
}

// Deactivate ротирует ключи перечисленных пользователей на deactivate-секрет
// одним батчевым вызовом ротатора. Частичных коммитов нет: при ошибке весь
// батч уходит на повтор следующим плановым прогоном.
func (m *Manager) Deactivate(ctx context.Context, telegramIDs []string) error {
	roster := make([]RosterEntry, 0, len(telegramIDs))
	for _, id := range telegramIDs {
		cfg, err := m.store.GetConfigByTelegramID(id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load config for %s: %w", id, err)
		}
		roster = append(roster, RosterEntry{
			ClientName:      id,
			NewPresharedKey: cfg.DeactivatePresharedKey,
		})
	}
	if len(roster) == 0 {
		return nil
	}
	return m.rotator.Apply(ctx, roster)
}

// Apply отправляет готовый ростер во внешний ротатор.
func (m *Manager) Apply(ctx context.Context, roster []RosterEntry) error {
	return m.rotator.Apply(ctx, roster)
}
