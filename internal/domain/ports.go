package domain

import (
	"context"
	"time"
)

// Reader — операции чтения, доступные и вне транзакции, и внутри неё.
// Внутри транзакции чтение видит собственные незафиксированные изменения.
type Reader interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	GetAddress(ctx context.Context, id int64) (Address, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductByName(ctx context.Context, name string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// ProductsByIDs возвращает найденные товары; отсутствующие id пропускаются.
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]Product, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64) ([]Order, error)
}

// Tx — единица работы. Все изменения применяются атомарно при фиксации
// или отбрасываются целиком. Блокировки строк держатся до конца транзакции.
type Tx interface {
	Reader

	// LockProducts захватывает эксклюзивные блокировки товаров в порядке возрастания id.
	LockProducts(ctx context.Context, ids ...int64) error
	// GetProductForUpdate блокирует товар и возвращает его актуальное состояние.
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	// CreateProduct присваивает ID; возвращает ErrConflict, если имя уже занято.
	CreateProduct(ctx context.Context, product Product) (Product, error)
	SaveProduct(ctx context.Context, product Product) error

	// GetOrderForUpdate блокирует заказ и возвращает его вместе с позициями.
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	// CreateOrder сохраняет заказ с позициями и присваивает идентификаторы.
	CreateOrder(ctx context.Context, order Order) (Order, error)
	// SaveOrder обновляет только заголовок заказа (суммы, статус).
	SaveOrder(ctx context.Context, order Order) error
	DeleteOrder(ctx context.Context, id int64) error
	InsertLine(ctx context.Context, line OrderLine) (OrderLine, error)
	UpdateLine(ctx context.Context, line OrderLine) error
	DeleteLine(ctx context.Context, line OrderLine) error

	CreateCustomer(ctx context.Context, customer Customer) (Customer, error)
	CreateAddress(ctx context.Context, address Address) (Address, error)

	// Enqueue кладёт событие в outbox в рамках той же транзакции.
	Enqueue(ctx context.Context, msg OutboxMessage) error
}

// Store — хранилище заказов, каталога и клиентов.
type Store interface {
	Reader
	// InTx выполняет fn в транзакции. Ошибка из fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository — сторона outbox, которую читает воркер публикации.
// Запись событий идёт через Tx.Enqueue.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release удаляет запись в статусе PROCESSING, чтобы ключ можно было повторить.
	Release(ctx context.Context, key string) error
	// ReleaseStuck удаляет до limit записей PROCESSING, не менявшихся с before.
	ReleaseStuck(ctx context.Context, before time.Time, limit int) (int, error)
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
