package activation

import (
	"context"
	"sync"
)

// userLocks сериализует активации одного пользователя внутри процесса.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock занят, пока в sem лежит значение.
type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock захватывает блокировку пользователя и возвращает функцию освобождения.
// Если ctx отменён раньше, чем блокировка освободилась, возвращает ctx.Err().
func (l *userLocks) lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, ul)
		return nil, ctx.Err()
	}
	return func() {
		<-ul.sem
		l.release(userID, ul)
	}, nil
}

func (l *userLocks) release(userID string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
}
