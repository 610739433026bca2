package chat

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Poller runs fetch immediately and then on every tick until Stop. A tick
// that arrives while a fetch is still running is skipped, and nothing is
// delivered once Stop has returned.
type Poller[T any] struct {
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)
	deliver  func(T, error)

	// newTicker is swapped in tests.
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu       sync.Mutex
	stopped  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Bool
	kick     chan struct{}
	skipped  atomic.Int64
}

func NewPoller[T any](interval time.Duration, fetch func(ctx context.Context) (T, error), deliver func(T, error)) *Poller[T] {
	return &Poller[T]{
		interval:  interval,
		fetch:     fetch,
		deliver:   deliver,
		newTicker: realTicker,
		kick:      make(chan struct{}, 1),
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start begins polling. It must be called at most once.
func (p *Poller[T]) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	ticks, stopTicker := p.newTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer stopTicker()

		p.tryFetch(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				p.tryFetch(ctx)
			case <-p.kick:
				p.tryFetch(ctx)
			}
		}
	}()
}

// Refresh asks for a fetch now instead of waiting for the next tick.
func (p *Poller[T]) Refresh() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Poller[T]) tryFetch(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		v, err := p.fetch(ctx)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.stopped || ctx.Err() != nil {
			return
		}
		p.deliver(v, err)
	}()
}

// Skipped counts ticks dropped because a fetch was still running.
func (p *Poller[T]) Skipped() int64 { return p.skipped.Load() }

// Stop cancels polling and waits for outstanding fetches to finish.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
