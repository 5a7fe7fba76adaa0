package gateway

import (
	"context"
	"strings"
	"time"
)

// isTransientSTTError reports whether err looks like a 503-style
// transient failure worth retrying, as opposed to a hard failure that
// should surface immediately.
func isTransientSTTError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporarily")
}

// transcribeWithRetry retries fn on transient failure with exponential
// backoff (2^attempt seconds), up to maxRetries attempts past the first.
func transcribeWithRetry(ctx context.Context, maxRetries int, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		text, err := fn()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isTransientSTTError(err) || attempt == maxRetries {
			return "", err
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
