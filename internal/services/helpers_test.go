package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/notify"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

const testConf = `[Interface]
Address = 10.8.1.5/32
DNS = 1.1.1.1
PrivateKey = cHJpdmF0ZWtleXByaXZhdGVrZXlwcml2YXRla2V5cHI=
Jc = 7
Jmin = 50
Jmax = 1000

[Peer]
PublicKey = cHVibGlja2V5cHVibGlja2V5cHVibGlja2V5cHVibGk=
PresharedKey = cHNrcHNrcHNrcHNrcHNrcHNrcHNrcHNrcHNrcHNrcHM=
AllowedIPs = 0.0.0.0/0
Endpoint = vpn.example.com:51820
PersistentKeepalive = 25
`

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	s := db.NewStoreWithDB(gdb)
	require.NoError(t, s.AutoMigrate())
	return s
}

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time {
		return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeNotifier копит отправленные сообщения и документы.
type fakeNotifier struct {
	messages  map[string][]string
	documents map[string][]string
	sendErr   error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		messages:  map[string][]string{},
		documents: map[string][]string{},
	}
}

func (f *fakeNotifier) Send(telegramID, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages[telegramID] = append(f.messages[telegramID], text)
	return nil
}

func (f *fakeNotifier) SendDocument(telegramID, filename string, data []byte, caption string) error {
	f.documents[telegramID] = append(f.documents[telegramID], filename)
	return nil
}

func (f *fakeNotifier) Broadcast(telegramIDs []string, text string) notify.BroadcastResult {
	res := notify.BroadcastResult{}
	for _, id := range telegramIDs {
		if err := f.Send(id, text); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}
	return res
}

type fakeConfigStore struct {
	raw string
	err error
}

func (f *fakeConfigStore) Generate(ctx context.Context, clientName string) (string, error) {
	return f.raw, f.err
}

type fakeRotator struct {
	applied [][]vpn.RosterEntry
	err     error
}

func (f *fakeRotator) Apply(ctx context.Context, roster []vpn.RosterEntry) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, roster)
	return nil
}
