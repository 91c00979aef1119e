package connectivity

import (
	"context"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// redialDelay is the pause between reconnect attempts while offline.
const redialDelay = 5 * time.Second

// Watcher derives the connectivity signal from a persistent AMQP
// connection to the server's control channel. While the connection is up
// the device is online; a close notification or failed dial flips the
// signal offline and the watcher keeps redialing until cancelled.
type Watcher struct {
	url    string
	signal *Signal
	delay  time.Duration

	// dial is swapped out in tests.
	dial func(url string) (amqpConn, error)
}

// amqpConn is the slice of *amqp.Connection the watcher needs.
type amqpConn interface {
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// NewWatcher creates a watcher that drives sig from the broker at url.
func NewWatcher(url string, sig *Signal) *Watcher {
	return &Watcher{
		url:    url,
		signal: sig,
		delay:  redialDelay,
		dial: func(url string) (amqpConn, error) {
			return amqp.Dial(url)
		},
	}
}

// Run blocks until ctx is cancelled, maintaining the control-channel
// connection and flipping the signal on every edge. Always leaves the
// signal offline on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.signal.Set(false)

	for {
		conn, err := w.dial(w.url)
		if err != nil {
			w.signal.Set(false)
			slog.Debug("control channel dial failed", "error", err)
			if !sleepCtx(ctx, w.delay) {
				return ctx.Err()
			}
			continue
		}

		w.signal.Set(true)
		slog.Info("control channel connected")

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		case amqpErr := <-closed:
			w.signal.Set(false)
			slog.Warn("control channel lost", "error", amqpErr)
			if !sleepCtx(ctx, w.delay) {
				return ctx.Err()
			}
		}
	}
}

// sleepCtx waits for d or context cancellation; false means cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
