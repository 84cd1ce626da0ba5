package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RomanCartman/amnezia-bot/internal/db"
	"github.com/RomanCartman/amnezia-bot/internal/vpn"
)

func seedUser(t *testing.T, store *db.Store, manager *vpn.Manager, telegramID string, end *time.Time, withConfig bool) {
	t.Helper()
	_, err := store.EnsureUser(telegramID, telegramID)
	require.NoError(t, err)
	if end != nil {
		require.NoError(t, store.UpdateEndDate(telegramID, *end))
	}
	if withConfig {
		_, _, err := manager.Provision(context.Background(), telegramID)
		require.NoError(t, err)
	}
}

func TestSweepRosterIsComplete(t *testing.T) {
	store := newTestStore(t)
	rot := &fakeRotator{}
	manager := vpn.NewManager(store, &fakeConfigStore{raw: testConf}, rot)
	notifier := newFakeNotifier()

	active := day(2024, 7, 1)
	expiredYesterday := day(2024, 6, 14)
	longExpired := day(2024, 5, 1)

	seedUser(t, store, manager, "alive", &active, true)
	seedUser(t, store, manager, "fresh", &expiredYesterday, true)
	seedUser(t, store, manager, "stale", &longExpired, true)
	seedUser(t, store, manager, "noconf", &longExpired, false)

	rot.applied = nil // сбрасываем вызовы из Provision

	sw := NewSweeper(store, manager, notifier)
	sw.now = fixedNow(2024, 6, 15)
	require.NoError(t, sw.Run(context.Background()))

	// Один батчевый вызов ротатора с полным ростером.
	require.Len(t, rot.applied, 1)
	roster := rot.applied[0]
	byName := map[string]string{}
	for _, e := range roster {
		byName[e.ClientName] = e.NewPresharedKey
	}
	assert.Len(t, roster, 3)

	aliveCfg, err := store.GetConfigByTelegramID("alive")
	require.NoError(t, err)
	assert.Equal(t, *aliveCfg.PresharedKey, byName["alive"])

	// Давно истёкший тоже в ростере: прогон самовосстанавливающийся.
	staleCfg, err := store.GetConfigByTelegramID("stale")
	require.NoError(t, err)
	assert.Equal(t, staleCfg.DeactivatePresharedKey, byName["stale"])

	freshCfg, err := store.GetConfigByTelegramID("fresh")
	require.NoError(t, err)
	assert.Equal(t, freshCfg.DeactivatePresharedKey, byName["fresh"])

	// Уведомление об окончании — только вчера истёкшему.
	assert.Len(t, notifier.messages["fresh"], 1)
	assert.Contains(t, notifier.messages["fresh"][0], "/buy")
	assert.Empty(t, notifier.messages["stale"])
	assert.Empty(t, notifier.messages["alive"])
}

func TestSweepRotatorFailureChangesNothing(t *testing.T) {
	store := newTestStore(t)
	okRotator := &fakeRotator{}
	manager := vpn.NewManager(store, &fakeConfigStore{raw: testConf}, okRotator)

	expired := day(2024, 6, 10)
	seedUser(t, store, manager, "gone", &expired, true)

	boom := errors.New("docker exec failed")
	failing := vpn.NewManager(store, &fakeConfigStore{}, &fakeRotator{err: boom})
	notifier := newFakeNotifier()

	sw := NewSweeper(store, failing, notifier)
	sw.now = fixedNow(2024, 6, 15)
	err := sw.Run(context.Background())
	assert.ErrorIs(t, err, boom)

	// Пользователь не уведомлён: доступ не отозван, батч уйдёт на повтор.
	assert.Empty(t, notifier.messages["gone"])
}

func TestSweepEmptyRoster(t *testing.T) {
	store := newTestStore(t)
	rot := &fakeRotator{}
	manager := vpn.NewManager(store, &fakeConfigStore{raw: testConf}, rot)
	notifier := newFakeNotifier()

	// Только безлимитный пользователь — ростер пуст, ротатор не дёргается.
	_, err := store.EnsureUser("boss", "boss")
	require.NoError(t, err)
	require.NoError(t, store.SetUnlimited("boss", true))

	sw := NewSweeper(store, manager, notifier)
	sw.now = fixedNow(2024, 6, 15)
	require.NoError(t, sw.Run(context.Background()))
	assert.Empty(t, rot.applied)
}

func TestExpiryNotifierTiers(t *testing.T) {
	store := newTestStore(t)
	notifier := newFakeNotifier()

	d10 := day(2024, 6, 25)
	d5 := day(2024, 6, 20)
	d2 := day(2024, 6, 17)
	d3 := day(2024, 6, 18) // мимо всех ступеней
	for id, d := range map[string]time.Time{"u10": d10, "u5": d5, "u2": d2, "u3": d3} {
		_, err := store.EnsureUser(id, "name-"+id)
		require.NoError(t, err)
		require.NoError(t, store.UpdateEndDate(id, d))
	}

	n := NewExpiryNotifier(store, notifier)
	n.now = fixedNow(2024, 6, 15)
	n.Run()

	require.Len(t, notifier.messages["u10"], 1)
	assert.Contains(t, notifier.messages["u10"][0], "10 дн.")
	require.Len(t, notifier.messages["u5"], 1)
	require.Len(t, notifier.messages["u2"], 1)
	assert.Empty(t, notifier.messages["u3"])

	// Повторный прогон в тот же день шлёт те же ступени ещё раз — планировщик
	// запускает его раз в сутки, сам Run историю не ведёт.
	n.Run()
	assert.Len(t, notifier.messages["u10"], 2)
}

type fakeResolver struct {
	names map[string]string
}

func (f *fakeResolver) ResolveName(telegramID string) (string, error) {
	name, ok := f.names[telegramID]
	if !ok {
		return "", errors.New("chat not found")
	}
	return name, nil
}

func TestNameRepair(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"100", "200", "300"} {
		_, err := store.EnsureUser(id, "")
		require.NoError(t, err)
	}
	_, err := store.EnsureUser("400", "named")
	require.NoError(t, err)

	r := NewNameRepair(store, &fakeResolver{names: map[string]string{
		"100": "alice",
		"200": "bob",
	}})
	r.Run()

	u, err := store.GetUserByTelegramID("100")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	// Недоступный чат остаётся без имени, но не валит прогон.
	u, err = store.GetUserByTelegramID("300")
	require.NoError(t, err)
	assert.Empty(t, u.Name)

	u, err = store.GetUserByTelegramID("400")
	require.NoError(t, err)
	assert.Equal(t, "named", u.Name)
}
