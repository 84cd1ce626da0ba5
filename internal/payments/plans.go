package payments

import "fmt"

// Plan — тариф подписки.
type Plan struct {
	Months int
	Price  int // рубли
}

// Тарифная сетка. Цены за 2 и 3 месяца ниже линейных — скидка за срок.
var Plans = []Plan{
	{Months: 1, Price: 80},
	{Months: 2, Price: 150},
	{Months: 3, Price: 210},
}

func PlanByMonths(months int) (Plan, bool) {
	for _, p := range Plans {
		if p.Months == months {
			return p, true
		}
	}
	return Plan{}, false
}

func (p Plan) Label() string {
	return fmt.Sprintf("%d мес. — %d₽", p.Months, p.Price)
}
