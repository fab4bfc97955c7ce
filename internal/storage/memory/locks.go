package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// rowLock — блокировка одной строки. Канал ёмкостью 1: запись в канал
// захватывает блокировку, чтение из него освобождает. refs считает владельца
// и ожидающих; слот живёт в таблице, пока refs > 0.
type rowLock struct {
	ch   chan struct{}
	refs int
}

// rowLocks — эксклюзивные блокировки строк. Таблица содержит только строки,
// которые сейчас кем-то захвачены или ожидаются.
type rowLocks struct {
	mu   sync.Mutex
	rows map[string]*rowLock
}

func newRowLocks() *rowLocks {
	return &rowLocks{rows: make(map[string]*rowLock)}
}

func (l *rowLocks) ref(key string) *rowLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[key]
	if !ok {
		row = &rowLock{ch: make(chan struct{}, 1)}
		l.rows[key] = row
	}
	row.refs++
	return row
}

func (l *rowLocks) unref(key string, row *rowLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row.refs--
	if row.refs == 0 {
		delete(l.rows, key)
	}
}

// acquire ждёт блокировку не дольше timeout (0 — без ограничения).
func (l *rowLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	row := l.ref(key)

	select {
	case row.ch <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case row.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(key, row)
		return ctx.Err()
	case <-expired:
		l.unref(key, row)
		return domain.NewError(domain.ErrLockTimeout, "timed out waiting for lock on %s", key)
	}
}

func (l *rowLocks) release(key string) {
	l.mu.Lock()
	row, ok := l.rows[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-row.ch
	l.unref(key, row)
}

func (l *rowLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}
