package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// DefaultLockTimeout — сколько транзакция ждёт блокировку строки.
const DefaultLockTimeout = 5 * time.Second

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Транзакции копят изменения у себя и применяют их под общей блокировкой при фиксации.
type Store struct {
	mu           sync.RWMutex
	customers    map[int64]domain.Customer
	addresses    map[int64]domain.Address
	products     map[int64]domain.Product
	productNames map[string]int64
	orders       map[int64]domain.Order
	lines        map[int64]domain.OrderLine
	orderLines   map[int64][]int64

	customerSeq atomic.Int64
	addressSeq  atomic.Int64
	productSeq  atomic.Int64
	orderSeq    atomic.Int64
	lineSeq     atomic.Int64

	locks       *rowLocks
	lockTimeout time.Duration
	outbox      *OutboxRepository
	now         func() time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithLockTimeout задаёт ожидание блокировки строки.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = timeout
	}
}

// WithOutbox подключает outbox, в который попадают события зафиксированных транзакций.
func WithOutbox(outbox *OutboxRepository) Option {
	return func(s *Store) {
		if outbox != nil {
			s.outbox = outbox
		}
	}
}

// NewStore создаёт пустое хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{
		customers:    make(map[int64]domain.Customer),
		addresses:    make(map[int64]domain.Address),
		products:     make(map[int64]domain.Product),
		productNames: make(map[string]int64),
		orders:       make(map[int64]domain.Order),
		lines:        make(map[int64]domain.OrderLine),
		orderLines:   make(map[int64][]int64),
		locks:        newRowLocks(),
		lockTimeout:  DefaultLockTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.outbox == nil {
		s.outbox = NewOutboxRepository()
	}
	return s
}

// Outbox возвращает outbox, связанный с хранилищем.
func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

// Ping всегда успешен: хранилище живёт в памяти процесса.
func (s *Store) Ping(context.Context) error {
	return nil
}

// InTx выполняет fn в транзакции. Изменения видны другим только после успешного fn.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx(s)
	defer t.releaseLocks()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

// snapshot — транзакция без изменений и блокировок; через неё идут чтения вне InTx.
func (s *Store) snapshot() *tx {
	return &tx{store: s}
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return s.snapshot().GetCustomer(ctx, id)
}

func (s *Store) GetAddress(ctx context.Context, id int64) (domain.Address, error) {
	return s.snapshot().GetAddress(ctx, id)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.snapshot().GetProduct(ctx, id)
}

func (s *Store) GetProductByName(ctx context.Context, name string) (domain.Product, error) {
	return s.snapshot().GetProductByName(ctx, name)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.snapshot().ListProducts(ctx)
}

func (s *Store) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	return s.snapshot().ProductsByIDs(ctx, ids)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.snapshot().GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.snapshot().ListOrders(ctx)
}

func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	return s.snapshot().ListOrdersByCustomer(ctx, customerID)
}

var _ domain.Store = (*Store)(nil)
