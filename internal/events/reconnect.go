package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const maxBackoff = 30 * time.Second

// ErrClosed is returned by Consume when the broker closes the delivery
// channel.
var ErrClosed = errors.New("message channel closed")

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// isConnectionError reports errors worth reconnecting for.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Dialer opens a consumer connection.
type Dialer func() (Consumer, error)

// Consumer is the part of Client used by ConsumeWithReconnect.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// ConsumeWithReconnect keeps a consumer running until ctx is done, dialing
// again with exponential backoff after connection failures.
func ConsumeWithReconnect(ctx context.Context, dial Dialer, handler Handler) error {
	attempt := 0
	for {
		consumer, err := dial()
		if err == nil {
			attempt = 0
			err = consumer.Consume(ctx, handler)
			consumer.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer disconnected, reconnecting", "error", errString(err), "retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
