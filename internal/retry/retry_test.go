package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"simulation-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("provider returned status %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

// recordingSleep запоминает запрошенные задержки и не спит.
type recordingSleep struct{ delays []time.Duration }

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestExecutor(maxAttempts int, base time.Duration) (*Executor, *recordingSleep) {
	rec := &recordingSleep{}
	e := NewExecutor(Policy{MaxAttempts: maxAttempts, BaseDelay: base}, zap.NewNop(), WithSleep(rec.sleep))
	return e, rec
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	e, rec := newTestExecutor(3, time.Second)
	calls := 0

	got, err := Do(context.Background(), e, "narrative", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("%w: 503", models.ErrTransientProvider)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	e, rec := newTestExecutor(3, 10*time.Millisecond)
	calls := 0
	transient := statusErr{code: 429}

	_, err := Do(context.Background(), e, "image", func(ctx context.Context) (int, error) {
		calls++
		return 0, transient
	})

	require.Error(t, err)
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)
	// После последней попытки не ждем
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rec.delays)
}

func TestDo_FatalErrorIsNotRetried(t *testing.T) {
	e, rec := newTestExecutor(3, time.Second)
	calls := 0

	_, err := Do(context.Background(), e, "options", func(ctx context.Context) (string, error) {
		calls++
		return "", fmt.Errorf("%w: schema validation failed", models.ErrFatalProvider)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrFatalProvider))
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	e := NewExecutor(Policy{MaxAttempts: 5, BaseDelay: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, e, "video", func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, statusErr{code: 500}
		})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not stop on context cancellation")
	}
}

func TestDelay(t *testing.T) {
	e, _ := newTestExecutor(4, 1000*time.Millisecond)
	assert.Equal(t, 1000*time.Millisecond, e.Delay(1))
	assert.Equal(t, 2000*time.Millisecond, e.Delay(2))
	assert.Equal(t, 4000*time.Millisecond, e.Delay(3))

	jittered := NewExecutor(Policy{MaxAttempts: 3, BaseDelay: time.Second, JitterFraction: 0.1}, zap.NewNop())
	for i := 0; i < 20; i++ {
		d := jittered.Delay(2)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient sentinel", fmt.Errorf("wrap: %w", models.ErrTransientProvider), true},
		{"fatal sentinel", fmt.Errorf("wrap: %w", models.ErrFatalProvider), false},
		{"story definition", models.ErrStoryDefinitionInvalid, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.example"}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"429", statusErr{code: 429}, true},
		{"503", statusErr{code: 503}, true},
		{"401", statusErr{code: 401}, false},
		{"400", statusErr{code: 400}, false},
		{"rate limit message", errors.New("Rate limit exceeded, slow down"), true},
		{"malformed json", errors.New("invalid character '}' looking for beginning of value"), false},
		{"auth message", errors.New("API key not valid"), false},
		{"status in message", errors.New("googleapi: Error 503: backend unavailable"), true},
		{"status code in message", errors.New("request failed: status code 429"), true},
		{"http status in message", errors.New("http 502 from upstream"), true},
		{"io timeout", errors.New("read tcp 10.0.0.1:443: i/o timeout"), true},
		{"number that looks like a status", errors.New("max tokens 1500 exceeded"), false},
		{"bare 500 in a limit", errors.New("prompt exceeds 500 characters"), false},
		{"timeout option", errors.New("invalid timeout_ms value"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
