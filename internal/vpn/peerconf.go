package vpn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

// PeerConfig — распарсенный peer-конфиг AmneziaWG.
// Секция [Interface]: Address, DNS, PrivateKey и обфускационные параметры;
// секция [Peer]: PublicKey, PresharedKey, AllowedIPs, Endpoint, PersistentKeepalive.
type PeerConfig struct {
	Address    string
	DNS        *string
	PrivateKey string

	Jc   *int
	Jmin *int
	Jmax *int
	S1   *int
	S2   *int
	H1   *int
	H2   *int
	H3   *int
	H4   *int

	PublicKey           string
	PresharedKey        *string
	AllowedIPs          *string
	Endpoint            *string
	PersistentKeepalive *int
}

// ParsePeerConfig разбирает текст конфига. Обе секции обязательны, как и
// PrivateKey/PublicKey: без них попытка провижининга считается провалившейся,
// ничего не сохраняется.
func ParsePeerConfig(text string) (*PeerConfig, error) {
	sections, err := parseSections(text)
	if err != nil {
		return nil, err
	}
	iface, ok := sections["interface"]
	if !ok {
		return nil, fmt.Errorf("%w: missing [Interface] section", errs.ErrParseFailure)
	}
	peer, ok := sections["peer"]
	if !ok {
		return nil, fmt.Errorf("%w: missing [Peer] section", errs.ErrParseFailure)
	}

	pc := &PeerConfig{
		Address:    iface["Address"],
		PrivateKey: iface["PrivateKey"],
		PublicKey:  peer["PublicKey"],
	}
	if pc.PrivateKey == "" {
		return nil, fmt.Errorf("%w: missing PrivateKey", errs.ErrParseFailure)
	}
	if pc.PublicKey == "" {
		return nil, fmt.Errorf("%w: missing PublicKey", errs.ErrParseFailure)
	}
	// Генератор обязан выдать настоящий ключевой материал, а не заглушки.
	if _, err := PublicKeyOf(pc.PrivateKey); err != nil {
		return nil, fmt.Errorf("%w: invalid PrivateKey", errs.ErrParseFailure)
	}
	if !ValidKey(pc.PublicKey) {
		return nil, fmt.Errorf("%w: invalid PublicKey", errs.ErrParseFailure)
	}
	pc.DNS = optString(iface, "DNS")

	// Обфускационные ручки переносим как есть, не интерпретируя.
	pc.Jc = optInt(iface, "Jc")
	pc.Jmin = optInt(iface, "Jmin")
	pc.Jmax = optInt(iface, "Jmax")
	pc.S1 = optInt(iface, "S1")
	pc.S2 = optInt(iface, "S2")
	pc.H1 = optInt(iface, "H1")
	pc.H2 = optInt(iface, "H2")
	pc.H3 = optInt(iface, "H3")
	pc.H4 = optInt(iface, "H4")

	pc.PresharedKey = optString(peer, "PresharedKey")
	pc.AllowedIPs = optString(peer, "AllowedIPs")
	pc.Endpoint = optString(peer, "Endpoint")
	pc.PersistentKeepalive = optInt(peer, "PersistentKeepalive")
	return pc, nil
}

func parseSections(text string) (map[string]map[string]string, error) {
	sections := make(map[string]map[string]string)
	var current map[string]string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			current = make(map[string]string)
			sections[name] = current
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("%w: bad line %q", errs.ErrParseFailure, line)
		}
		if current == nil {
			return nil, fmt.Errorf("%w: key %q outside of section", errs.ErrParseFailure, strings.TrimSpace(key))
		}
		current[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return sections, nil
}

func optString(m map[string]string, key string) *string {
	if v, ok := m[key]; ok && v != "" {
		return &v
	}
	return nil
}

func optInt(m map[string]string, key string) *int {
	if v, ok := m[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

// Render собирает текст конфига из сохранённой в БД конфигурации —
// для повторной выдачи файла пользователю.
func Render(cfg db.Config) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	writeKV(&b, "Address", cfg.Address)
	if cfg.DNS != nil {
		writeKV(&b, "DNS", *cfg.DNS)
	}
	writeKV(&b, "PrivateKey", cfg.PrivateKey)
	writeOptInt(&b, "Jc", cfg.Jc)
	writeOptInt(&b, "Jmin", cfg.Jmin)
	writeOptInt(&b, "Jmax", cfg.Jmax)
	writeOptInt(&b, "S1", cfg.S1)
	writeOptInt(&b, "S2", cfg.S2)
	writeOptInt(&b, "H1", cfg.H1)
	writeOptInt(&b, "H2", cfg.H2)
	writeOptInt(&b, "H3", cfg.H3)
	writeOptInt(&b, "H4", cfg.H4)

	b.WriteString("\n[Peer]\n")
	writeKV(&b, "PublicKey", cfg.PublicKey)
	if cfg.PresharedKey != nil {
		writeKV(&b, "PresharedKey", *cfg.PresharedKey)
	}
	if cfg.AllowedIPs != nil {
		writeKV(&b, "AllowedIPs", *cfg.AllowedIPs)
	}
	if cfg.Endpoint != nil {
		writeKV(&b, "Endpoint", *cfg.Endpoint)
	}
	writeOptInt(&b, "PersistentKeepalive", cfg.PersistentKeepalive)
	return b.String()
}

func writeKV(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(" = ")
	b.WriteString(value)
	b.WriteString("\n")
}

func writeOptInt(b *strings.Builder, key string, v *int) {
	if v != nil {
		writeKV(b, key, strconv.Itoa(*v))
	}
}
