package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Defaults совпадают с AI_MAX_ATTEMPTS / AI_BASE_RETRY_DELAY.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy описывает ограниченный экспоненциальный повтор.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// JitterFraction добавляет случайное отклонение ±fraction к задержке (0 = без джиттера).
	JitterFraction float64
}

// Executor runs fallible operations with bounded exponential backoff.
// Each call has its own attempt loop, so a sleeping retry never blocks other callers.
type Executor struct {
	policy     Policy
	classifier func(error) bool
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

// Option настраивает Executor.
type Option func(*Executor)

// WithClassifier заменяет классификатор повторяемых ошибок.
func WithClassifier(fn func(error) bool) Option {
	return func(e *Executor) { e.classifier = fn }
}

// WithSleep заменяет функцию ожидания (используется в тестах).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// NewExecutor creates an Executor. MaxAttempts < 1 is treated as 1.
func NewExecutor(policy Policy, logger *zap.Logger, opts ...Option) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	e := &Executor{
		policy:     policy,
		classifier: IsRetryable,
		sleep:      sleepContext,
		logger:     logger.Named("RetryExecutor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Delay возвращает паузу после неудачной попытки attempt (нумерация с 1): base * 2^(attempt-1).
func (e *Executor) Delay(attempt int) time.Duration {
	delay := float64(e.policy.BaseDelay) * math.Pow(2, float64(attempt-1))
	if e.policy.JitterFraction > 0 {
		jitter := delay * e.policy.JitterFraction
		delay += jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}

// Do выполняет op с повторами. Нефатальная ошибка повторяется до MaxAttempts,
// фатальная (или последняя) возвращается сразу без ожидания.
func Do[T any](ctx context.Context, e *Executor, operation string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	log := e.logger.With(zap.String("operation", operation), zap.Int("max_attempts", e.policy.MaxAttempts))

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry", zap.Int("attempt", attempt))
			}
			recordAttempt(operation, "success")
			return result, nil
		}

		retryable := e.classifier(err)
		if !retryable {
			log.Warn("Operation failed with non-retryable error",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			recordAttempt(operation, "fatal")
			return zero, err
		}
		if attempt >= e.policy.MaxAttempts {
			log.Error("Operation failed, retry attempts exhausted",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			recordAttempt(operation, "exhausted")
			return zero, err
		}

		delay := e.Delay(attempt)
		log.Warn("Operation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		recordAttempt(operation, "retry")

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			// Контекст отменен во время ожидания: возвращаем последнюю ошибку операции
			log.Warn("Retry wait interrupted", zap.Int("attempt", attempt), zap.Error(sleepErr))
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
