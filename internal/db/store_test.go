package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RomanCartman/amnezia-bot/internal/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	s := NewStoreWithDB(gdb)
	require.NoError(t, s.AutoMigrate())
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEnsureUserIdempotent(t *testing.T) {
	s := newTestStore(t)

	u1, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u1.Name)

	// Повторный контакт не перетирает существующую запись.
	u2, err := s.EnsureUser("100", "other-name")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "alice", u2.Name)

	count, err := s.CountUsers()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUserByTelegramID("nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.GetUserByID(999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateEndDate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	end := day(2024, 7, 1)
	require.NoError(t, s.UpdateEndDate("100", end))

	u, err := s.GetUserByTelegramID("100")
	require.NoError(t, err)
	require.NotNil(t, u.EndDate)
	assert.True(t, u.EndDate.Equal(end) || u.EndDate.Format("2006-01-02") == "2024-07-01")

	// Несуществующий пользователь — ErrNotFound, не молчаливый no-op.
	assert.ErrorIs(t, s.UpdateEndDate("missing", end), errs.ErrNotFound)
}

func TestCreateConfigDuplicate(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	cfg := Config{
		UserID:                 u.ID,
		PrivateKey:             "priv",
		Address:                "10.8.1.5/32",
		PublicKey:              "pub",
		DeactivatePresharedKey: "deact",
	}
	require.NoError(t, s.CreateConfig(&cfg))

	// Второй конфиг тому же пользователю отбивается уникальным индексом.
	dup := Config{
		UserID:                 u.ID,
		PrivateKey:             "priv2",
		Address:                "10.8.1.6/32",
		PublicKey:              "pub2",
		DeactivatePresharedKey: "deact2",
	}
	assert.ErrorIs(t, s.CreateConfig(&dup), errs.ErrAlreadyProvisioned)

	count, err := s.CountConfigs()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGetConfigByTelegramID(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	_, err = s.GetConfigByTelegramID("100")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	cfg := Config{UserID: u.ID, PrivateKey: "priv", Address: "a", PublicKey: "pub", DeactivatePresharedKey: "d"}
	require.NoError(t, s.CreateConfig(&cfg))

	got, err := s.GetConfigByTelegramID("100")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, got.ID)

	_, err = s.GetConfigByTelegramID("other")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSettlePaymentOnce(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	pay := Payment{UserID: u.ID, Amount: 150, Months: 2, UniquePayload: "tok-1"}
	require.NoError(t, s.CreatePayment(&pay))
	assert.Equal(t, PaymentPending, pay.Status)

	settled, err := s.SettlePayment("tok-1", "prov-42")
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, settled.Status)
	require.NotNil(t, settled.ProviderPaymentID)
	assert.Equal(t, "prov-42", *settled.ProviderPaymentID)

	// Повторная доставка того же токена — дубликат, статус не меняется.
	again, err := s.SettlePayment("tok-1", "prov-43")
	assert.ErrorIs(t, err, errs.ErrDuplicateSettlement)
	assert.Equal(t, PaymentSuccess, again.Status)
	assert.Equal(t, "prov-42", *again.ProviderPaymentID)

	// Неизвестный токен — ErrNotFound.
	_, err = s.SettlePayment("tok-unknown", "prov-44")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFailPaymentKeepsSettled(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	pay := Payment{UserID: u.ID, Amount: 80, Months: 1, UniquePayload: "tok-2"}
	require.NoError(t, s.CreatePayment(&pay))
	_, err = s.SettlePayment("tok-2", "prov-1")
	require.NoError(t, err)

	require.NoError(t, s.FailPayment("tok-2"))
	got, err := s.GetPaymentByPayload("tok-2")
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, got.Status)
}

func TestUsersExpiredAsOf(t *testing.T) {
	s := newTestStore(t)
	mk := func(id string, end *time.Time, unlimited bool) {
		_, err := s.EnsureUser(id, id)
		require.NoError(t, err)
		if end != nil {
			require.NoError(t, s.UpdateEndDate(id, *end))
		}
		if unlimited {
			require.NoError(t, s.SetUnlimited(id, true))
		}
	}
	d1 := day(2024, 6, 10)
	d2 := day(2024, 6, 14)
	d3 := day(2024, 6, 20)
	mk("old", &d1, false)       // давно истёк
	mk("yesterday", &d2, false) // истёк вчера
	mk("future", &d3, false)    // ещё активен
	mk("unlim", &d1, true)      // безлимит не истекает
	mk("nodate", nil, false)    // без подписки

	got, err := s.UsersExpiredAsOf(day(2024, 6, 14))
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, u := range got {
		ids = append(ids, u.TelegramID)
	}
	assert.ElementsMatch(t, []string{"old", "yesterday"}, ids)
}

func TestUsersExpiringOn(t *testing.T) {
	s := newTestStore(t)
	d10 := day(2024, 6, 25)
	d5 := day(2024, 6, 20)
	other := day(2024, 6, 22)
	for id, d := range map[string]time.Time{"a": d10, "b": d5, "c": other} {
		_, err := s.EnsureUser(id, id)
		require.NoError(t, err)
		require.NoError(t, s.UpdateEndDate(id, d))
	}

	got, err := s.UsersExpiringOn([]time.Time{d10, d5})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, u := range got {
		ids = append(ids, u.TelegramID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	// Пустой список дат — пустой результат, без похода в БД.
	got, err = s.UsersExpiringOn(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConfigsByUserIDs(t *testing.T) {
	s := newTestStore(t)
	u1, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)
	u2, err := s.EnsureUser("200", "bob")
	require.NoError(t, err)

	cfg := Config{UserID: u1.ID, PrivateKey: "p", Address: "a", PublicKey: "pk", DeactivatePresharedKey: "d"}
	require.NoError(t, s.CreateConfig(&cfg))

	m, err := s.ConfigsByUserIDs([]uint{u1.ID, u2.ID})
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, cfg.ID, m[u1.ID].ID)
}

func TestDeleteUserConfigs(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)
	cfg := Config{UserID: u.ID, PrivateKey: "p", Address: "a", PublicKey: "pk", DeactivatePresharedKey: "d"}
	require.NoError(t, s.CreateConfig(&cfg))

	require.NoError(t, s.DeleteUserConfigs(u.ID))
	_, err = s.GetConfigByUserID(u.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	// Пользователь и после удаления конфига остаётся.
	_, err = s.GetUserByTelegramID("100")
	require.NoError(t, err)
}

func TestSumSettledPayments(t *testing.T) {
	s := newTestStore(t)
	u, err := s.EnsureUser("100", "alice")
	require.NoError(t, err)

	p1 := Payment{UserID: u.ID, Amount: 80, Months: 1, UniquePayload: "t1"}
	p2 := Payment{UserID: u.ID, Amount: 150, Months: 2, UniquePayload: "t2"}
	p3 := Payment{UserID: u.ID, Amount: 210, Months: 3, UniquePayload: "t3"}
	for _, p := range []*Payment{&p1, &p2, &p3} {
		require.NoError(t, s.CreatePayment(p))
	}
	_, err = s.SettlePayment("t1", "x1")
	require.NoError(t, err)
	_, err = s.SettlePayment("t2", "x2")
	require.NoError(t, err)
	// t3 остаётся pending и в сумму не входит.

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	sum, err := s.SumSettledPayments(from, to)
	require.NoError(t, err)
	assert.EqualValues(t, 230, sum)
}

func TestErrNotFoundDistinct(t *testing.T) {
	assert.False(t, errors.Is(errs.ErrNotFound, errs.ErrDuplicateSettlement))
}
