package service

import "errors"

// Классы ошибок сервиса. Обработчики HTTP сопоставляют их со статусами ответа через errors.Is.
var (
	// ErrValidation означает некорректные входные данные или недопустимый переход статуса.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound означает, что товар, заказ или платёж не найдены.
	ErrNotFound = errors.New("not found")
	// ErrConflict означает, что заказ уже находится в конечном статусе.
	ErrConflict = errors.New("conflict")
	// ErrGateway означает отказ или недоступность платёжной системы.
	ErrGateway = errors.New("payment gateway error")
	ErrAuth    = errors.New("unauthorized")
	// ErrConfig означает отсутствие обязательной настройки.
	ErrConfig  = errors.New("configuration error")
	ErrStorage = errors.New("storage error")
)
