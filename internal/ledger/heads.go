package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// headSource is the subset of the ethclient surface the watcher relies on.
type headSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// HeadWatcher exposes new ledger blocks as a lazy, restartable sequence.
// It prefers a push subscription and restarts it when it drops; transports
// that do not support subscriptions (plain HTTP) degrade to polling.
type HeadWatcher struct {
	src      headSource
	interval time.Duration
	log      *zap.Logger
}

// NewHeadWatcher constructs a watcher polling at the given interval when a
// push subscription is unavailable.
func NewHeadWatcher(src headSource, interval time.Duration, log *zap.Logger) *HeadWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HeadWatcher{src: src, interval: interval, log: log}
}

// Watch yields strictly increasing block numbers until ctx is cancelled.
// The returned channel is closed when the watcher stops.
func (w *HeadWatcher) Watch(ctx context.Context) <-chan uint64 {
	out := make(chan uint64, 1)
	go w.run(ctx, out)
	return out
}

func (w *HeadWatcher) run(ctx context.Context, out chan<- uint64) {
	defer close(out)

	var last uint64
	for ctx.Err() == nil {
		started, err := w.stream(ctx, out, &last)
		if ctx.Err() != nil {
			return
		}
		if !started {
			// Transport cannot subscribe; poll for the rest of this watch.
			w.poll(ctx, out, &last)
			return
		}
		w.log.Debug("head subscription dropped; restarting", zap.Error(err))
	}
}

// stream consumes a new-head subscription. The bool reports whether the
// subscription was established at all.
func (w *HeadWatcher) stream(ctx context.Context, out chan<- uint64, last *uint64) (bool, error) {
	ch := make(chan *types.Header, 8)
	sub, err := w.src.SubscribeNewHead(ctx, ch)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case err := <-sub.Err():
			return true, err
		case head := <-ch:
			if head == nil || head.Number == nil {
				continue
			}
			w.emit(out, last, head.Number.Uint64())
		}
	}
}

func (w *HeadWatcher) poll(ctx context.Context, out chan<- uint64, last *uint64) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.src.BlockNumber(ctx)
			if err != nil {
				continue
			}
			w.emit(out, last, n)
		}
	}
}

func (w *HeadWatcher) emit(out chan<- uint64, last *uint64, n uint64) {
	if n <= *last {
		return
	}
	*last = n
	select {
	case out <- n:
	default:
		// Consumer is busy; it only cares that a new head exists, not which.
	}
}
