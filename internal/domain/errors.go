package domain

import (
	"errors"
	"fmt"
)

// Категории бизнес-ошибок. Каждая операция сервиса возвращает ошибку,
// которая через errors.Is приводится ровно к одной из них.
var (
	// ErrNotFound — запрошенная сущность (заказ, клиент, адрес, товар, позиция) не существует.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — клиент пытается изменить или прочитать чужой заказ.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState — заказ в текущем статусе не допускает операцию.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput — некорректные параметры запроса.
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutOfStock — у товара нулевой остаток.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInsufficientStock — остатка товара не хватает на запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict — нарушение уникальности (например, имя товара уже занято).
	ErrConflict = errors.New("conflict")
	// ErrLockTimeout — не удалось дождаться блокировки строки за отведённое время.
	ErrLockTimeout = errors.New("lock wait timeout")
)

var (
	// Ошибка пустого имени товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отрицательного остатка товара.
	ErrStockNegative = errors.New("stock quantity must be non-negative")
	// Ошибка несоответствия статуса товара его остатку.
	ErrStockStatusMismatch = errors.New("product status does not match stock quantity")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = errors.New("address_id is required")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line unit price must be non-negative")
	// Ошибка повторяющегося товара в заказе.
	ErrDuplicateProduct = errors.New("product appears more than once in order")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match lines sum")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Error — бизнес-ошибка с категорией и человекочитаемым сообщением.
// Сообщение уходит клиенту как есть, категория определяет код ответа.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError создаёт бизнес-ошибку указанной категории.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf — сокращение для NewError(ErrNotFound, ...).
func NotFoundf(format string, args ...any) *Error {
	return NewError(ErrNotFound, format, args...)
}

// InvalidInputf — сокращение для NewError(ErrInvalidInput, ...).
func InvalidInputf(format string, args ...any) *Error {
	return NewError(ErrInvalidInput, format, args...)
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidInput, "invalid_input"},
	{ErrOutOfStock, "out_of_stock"},
	{ErrInsufficientStock, "insufficient_stock"},
	{ErrConflict, "conflict"},
	{ErrLockTimeout, "lock_timeout"},
}

// KindName возвращает короткое имя категории ошибки для логов и метрик.
// Для nil возвращает "ok", для ошибок вне категорий — "internal".
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// IsBusiness сообщает, относится ли ошибка к одной из бизнес-категорий.
func IsBusiness(err error) bool {
	name := KindName(err)
	return name != "ok" && name != "internal"
}
