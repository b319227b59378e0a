package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxBackoff    = 30 * time.Second
	maxRetryAfter = 5 * time.Minute
)

// transient error text that survives wrapping by the transport
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporary failure",
}

// doWithRetry runs a catalogue read up to MaxRetries+1 times. Transient
// network errors, 408, 429 and 5xx are retried with full-jitter backoff, and a
// Retry-After header replaces the computed wait. Mutations never come here.
func (c *client) doWithRetry(
	ctx context.Context,
	op string,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	attempts := max(c.cfg.MaxRetries+1, 1)

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		resp, err := do(ctx)
		wait, retry, final := c.classify(resp, err, attempt)

		c.logger.Debug("recipe backend attempt",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Int("of", attempts),
			zap.Duration("took", time.Since(started)),
			zap.Bool("retry", retry),
			zap.Error(err),
		)

		if !retry {
			return resp, final
		}
		lastErr = final

		if attempt == attempts-1 {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.logger.Warn("recipe backend read gave up",
		zap.String("operation", op),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("recipeapi: %s: %d attempts failed: %w", op, attempts, lastErr)
}

// classify decides what one attempt means. When retry is false the response
// and err are returned to the caller as they are. When retry is true, err is
// the failure to report if attempts run out, and wait is the pause before the
// next attempt.
func (c *client) classify(resp *http.Response, err error, attempt int) (wait time.Duration, retry bool, final error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, false, err
		}
		if !isTransientNetError(err) {
			return 0, false, err
		}
		return computeBackoff(c.cfg.BaseBackoff, attempt), true, err
	}

	if !shouldRetryStatus(resp.StatusCode) {
		return 0, false, nil
	}

	wait = parseRetryAfter(resp)
	if wait == 0 {
		wait = computeBackoff(c.cfg.BaseBackoff, attempt)
	}
	// drain so the connection goes back to the pool
	if resp.Body != nil {
		resp.Body.Close()
	}
	return wait, true, &StatusError{Status: resp.StatusCode}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write") {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// shouldRetryStatus reports whether a catalogue read that ended with status
// is worth repeating. Zero means no response at all.
func shouldRetryStatus(status int) bool {
	return status == 0 ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date, capped at
// five minutes. Missing or unusable values give 0.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = time.Until(at)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// computeBackoff returns a uniformly random wait in [0, base*2^attempt),
// capped at maxBackoff.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	ceiling := base << min(attempt, 10)
	if ceiling <= 0 || ceiling > maxBackoff {
		ceiling = maxBackoff
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
