package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	// DefaultLockTimeout ограничивает ожидание блокировки строки внутри транзакции.
	DefaultLockTimeout = 5 * time.Second
)

// Store — PostgreSQL-реализация domain.Store поверх database/sql и pgx.
type Store struct {
	reader
	db          *sql.DB
	lockTimeout time.Duration
}

// Option настраивает Store.
type Option func(*Store)

// WithLockTimeout задаёт lock_timeout для транзакций сервиса.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{
		reader:      reader{q: db},
		db:          db,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// InTx выполняет fn в транзакции READ COMMITTED. Строки блокируются через
// SELECT ... FOR UPDATE, ожидание блокировки ограничено lock_timeout.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	// SET LOCAL не принимает параметры, значение подставляется числом миллисекунд.
	if _, err = sqlTx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err = fn(&tx{reader: reader{q: sqlTx}, tx: sqlTx}); err != nil {
		return mapError(err)
	}

	if err = sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// mapError приводит ошибки драйвера к категориям domain. Бизнес-ошибки проходят без изменений.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case isUniqueViolation(err):
		return &domain.Error{Kind: domain.ErrConflict, Message: "unique constraint violated"}
	case isLockFailure(err):
		return &domain.Error{Kind: domain.ErrLockTimeout, Message: "could not acquire row lock in time"}
	}
	return err
}

var _ domain.Store = (*Store)(nil)
