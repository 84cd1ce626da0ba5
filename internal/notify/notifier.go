// Package notify — доставка сообщений пользователям и админам.
// Отказ одного получателя не валит рассылку: результаты агрегируются.
package notify

// BroadcastResult — итог рассылки по списку получателей.
type BroadcastResult struct {
	Sent   int
	Failed int
}

// Notifier — контракт доставки текста/файла пользователю.
type Notifier interface {
	Send(telegramID string, text string) error
	SendDocument(telegramID string, filename string, data []byte, caption string) error
	Broadcast(telegramIDs []string, text string) BroadcastResult
}
