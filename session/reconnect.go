package session

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"astmgw/astm"
	"astmgw/store"
	"astmgw/transport"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RunWithReconnect opens a transport via opener and runs a Controller
// over it until ctx is cancelled. Whenever the transport closes, it
// reopens it at once, starting each new session Idle; failed Open
// attempts are retried with capped exponential backoff (1s, 2s, 4s, ...
// up to 30s), which resets after a successful Open (§7).
func RunWithReconnect(ctx context.Context, opener transport.Opener, s store.Store, sink astm.Sink, logger *log.Logger, cfg Config) error {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t, err := opener.Open()
		if err != nil {
			logger.Error("transport open failed, retrying", "err", err, "backoff", backoff)
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = initialBackoff
		ctrl := New(t, s, sink, logger, cfg)
		err = ctrl.Run(ctx)
		_ = t.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, astm.ErrTransportClosed) {
			logger.Warn("session ended", "err", err)
		}
		logger.Info("transport closed, reopening", "backoff", backoff)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
