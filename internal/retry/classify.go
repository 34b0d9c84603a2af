package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"

	"simulation-server/internal/models"
)

// HTTPStatusError реализуют ошибки провайдеров, которые знают HTTP-статус ответа.
type HTTPStatusError interface {
	error
	HTTPStatus() int
}

// IsRetryableStatus: 408, 429 и все 5xx.
func IsRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

// IsRetryable classifies an error as transient (network, timeout, rate limit, 5xx) or fatal.
// Ошибки валидации, разбора JSON, авторизации и отмена контекста фатальны.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Явная классификация приоритетнее эвристик
	switch {
	case errors.Is(err, models.ErrFatalProvider),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, models.ErrTransientProvider),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var statusErr HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.HTTPStatus())
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return matchesTransientMessage(err.Error())
}

var transientMarkers = []string{
	// сеть
	"no such host", "connection refused", "connection reset", "cannot connect",
	"i/o timeout", "request timeout", "timeout exceeded", "timed out", "network is unreachable",
	// лимиты
	"rate limit", "too many requests", "resource_exhausted",
	// 5xx
	"unavailable", "internal server error", "bad gateway", "gateway timeout",
}

// Код статуса засчитывается только рядом со словом status/code/http, а не внутри любого числа.
var transientStatusPattern = regexp.MustCompile(`\b(?:status|code|http|error)\b[^0-9a-z]{0,4}(?:code[^0-9a-z]{0,3})?(?:408|429|5\d\d)\b`)

// matchesTransientMessage последний рубеж для ошибок SDK без типизированного статуса.
func matchesTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return transientStatusPattern.MatchString(msg)
}
