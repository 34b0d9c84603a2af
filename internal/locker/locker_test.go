package locker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameRun(t *testing.T) {
	l := NewLocalLocker(0)
	runID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), runID)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside)
	assert.Zero(t, l.size(), "lock entries must be released")
}

func TestLocalLocker_DifferentRunsDoNotBlock(t *testing.T) {
	l := NewLocalLocker(0)
	unlockA, err := l.Lock(context.Background(), uuid.New())
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, uuid.New())
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	l := NewLocalLocker(0)
	runID := uuid.New()
	unlock, err := l.Lock(context.Background(), runID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, runID)
	assert.ErrorIs(t, err, ErrRunBusy)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Повторный вызов unlock безопасен
	unlock()
	unlock()
	assert.Zero(t, l.size())
}

func TestLocalLocker_WaitTimeout(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	runID := uuid.New()
	unlock, err := l.Lock(context.Background(), runID)
	require.NoError(t, err)
	defer unlock()

	start := time.Now()
	_, err = l.Lock(context.Background(), runID)
	assert.ErrorIs(t, err, ErrRunBusy)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, l.size(), "holder entry must stay while locked")
}

func TestLocalLocker_WaitSucceedsAfterRelease(t *testing.T) {
	l := NewLocalLocker(time.Second)
	runID := uuid.New()
	unlock, err := l.Lock(context.Background(), runID)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		unlock()
	}()
	unlockB, err := l.Lock(context.Background(), runID)
	require.NoError(t, err)
	unlockB()
	assert.Zero(t, l.size())
}
