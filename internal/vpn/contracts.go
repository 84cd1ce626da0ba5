package vpn

import "context"

// RosterEntry — одна запись декларативного ростера, уходящего во внешний ротатор.
// Формат полей фиксирован контрактом скрипта.
type RosterEntry struct {
	ClientName      string `json:"client_name"`
	NewPresharedKey string `json:"new_preshared_key"`
}

// PeerConfigStore генерирует ключевой материал и текст peer-конфига
// для нового клиента. Медленный внешний вызов (docker exec).
type PeerConfigStore interface {
	Generate(ctx context.Context, clientName string) (string, error)
}

// PeerKeyRotator применяет ростер одним внешним вызовом.
// Вызов атомарен с точки зрения ядра: либо весь ростер, либо ничего.
type PeerKeyRotator interface {
	Apply(ctx context.Context, roster []RosterEntry) error
}
