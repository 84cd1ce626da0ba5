// Package errs содержит sentinel-ошибки, общие для всех слоёв бота.
// Ошибки внешних коллабораторов приводятся к одной из них на границе core.
package errs

import "errors"

var (
	// ErrNotFound — пользователь/конфиг/платёж не существует.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProvisioned — у пользователя уже есть VPN-конфигурация.
	ErrAlreadyProvisioned = errors.New("config already provisioned")

	// ErrParseFailure — сгенерированный peer-конфиг не содержит обязательных полей.
	ErrParseFailure = errors.New("peer config parse failure")

	// ErrExternalCall — внешний скрипт/контейнер завершился с ошибкой.
	ErrExternalCall = errors.New("external call failed")

	// ErrDuplicateSettlement — повторный callback по уже проведённому платежу.
	// Не ошибка бизнес-логики: повтор обрабатывается как no-op.
	ErrDuplicateSettlement = errors.New("payment already settled")
)
