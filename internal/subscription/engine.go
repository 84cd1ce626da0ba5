// Package subscription — чистая логика статуса подписки.
// Никаких побочных эффектов: состояние читает и пишет Store, здесь только вычисления.
package subscription

import (
	"time"

	"github.com/RomanCartman/amnezia-bot/internal/db"
)

// TrialDays — длительность пробного периода.
const TrialDays = 7

// Day обрезает момент времени до даты (полночь UTC).
// Все сравнения подписок идут по датам, не по моментам.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsActive отвечает, имеет ли пользователь доступ к VPN прямо сейчас.
// end_date = NULL и is_unlimited = false -> подписки нет.
// end_date = дата и is_unlimited = false -> обычная подписка, активна по end_date включительно.
// is_unlimited = true -> дата не имеет значения.
func IsActive(u db.User, now time.Time) bool {
	if u.IsUnlimited {
		return true
	}
	if u.EndDate == nil {
		return false
	}
	return !Day(*u.EndDate).Before(Day(now))
}

// Extend вычисляет новую дату окончания: календарные месяцы от максимума из
// текущей даты окончания и сегодняшнего дня. Истёкшая подписка продлевается
// от сегодня, чтобы пользователь не оплачивал уже прошедшее время; действующая —
// от своей даты, чтобы продление ничего не отнимало.
func Extend(current *time.Time, months int, now time.Time) time.Time {
	base := Day(now)
	if current != nil && Day(*current).After(base) {
		base = Day(*current)
	}
	return base.AddDate(0, months, 0)
}

// DaysLeft возвращает число полных дней до конца подписки.
// Для безлимитных и пользователей без подписки смысла не имеет, вернёт 0.
func DaysLeft(u db.User, now time.Time) int {
	if u.IsUnlimited || u.EndDate == nil {
		return 0
	}
	d := int(Day(*u.EndDate).Sub(Day(now)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// TrialEligible — пробный период доступен один раз и только пока нет подписки.
func TrialEligible(u db.User, now time.Time) bool {
	return !u.HasUsedTrial && !IsActive(u, now)
}
