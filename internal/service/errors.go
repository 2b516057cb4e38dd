package service

import "errors"

// Ошибки бизнес-слоя. Обработчики HTTP сопоставляют их со статус-кодами,
// поэтому каждая возвращаемая ошибка оборачивает одну из этих сентинелей.
var (
	// ErrValidation — некорректный ввод вызывающей стороны, состояние не менялось.
	ErrValidation = errors.New("validation error")
	// ErrNotFound — указанная сущность отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrConflict — нарушение инварианта, например вторая активная платёжная сессия.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition — переход отсутствует в таблице состояний заказа.
	ErrInvalidTransition = errors.New("invalid order transition")
	// ErrConsistency — шлюз противоречит ранее зафиксированному терминальному факту.
	// Записывается в инциденты и никогда не разрешается автоматически.
	ErrConsistency = errors.New("gateway consistency violation")
	// ErrUpstream — шлюз или push-провайдер недоступен либо не ответил вовремя.
	ErrUpstream = errors.New("upstream unavailable")
)
