package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
)

// ErrRunBusy возвращается, когда блокировку прохождения не удалось получить за отведенное время.
var ErrRunBusy = fmt.Errorf("%w: run is busy with another request", models.ErrInvalidState)

// RunLocker сериализует операции над одним прохождением.
// Возвращаемую функцию unlock нужно вызвать ровно один раз.
type RunLocker interface {
	Lock(ctx context.Context, runID uuid.UUID) (unlock func(), error)
}

// LocalLocker блокировка в памяти процесса: мьютекс на каждый run id со счетчиком ссылок.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refLock
	wait  time.Duration // 0: ждем только ctx
}

type refLock struct {
	ch   chan struct{} // буфер 1: занятый слот означает захваченную блокировку
	refs int
}

var _ RunLocker = (*LocalLocker)(nil)

// NewLocalLocker creates an in-process locker.
// wait bounds how long Lock waits before returning ErrRunBusy; zero waits for ctx only.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*refLock), wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, runID uuid.UUID) (func(), error) {
	l.mu.Lock()
	rl, ok := l.locks[runID]
	if !ok {
		rl = &refLock{ch: make(chan struct{}, 1)}
		l.locks[runID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case rl.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.release(runID, rl)
		// Истек собственный таймаут ожидания, а не ctx вызывающего
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrRunBusy
		}
		return nil, fmt.Errorf("%w: %w", ErrRunBusy, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-rl.ch
			l.release(runID, rl)
		})
	}, nil
}

// release удаляет запись, когда ее больше никто не ждет.
func (l *LocalLocker) release(runID uuid.UUID, rl *refLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, runID)
	}
}

// size используется в тестах.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
