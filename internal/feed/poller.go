package feed

import (
	"context"
	"sync"
	"time"

	"github.com/gauravpandeydigilantern/eims-demo-sub000/internal/event"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Refresher is the slice of the cache coordinator the poller needs:
// enumerate keys and force each one through a revalidating read.
type Refresher interface {
	Keys() []string
	Get(ctx context.Context, key string) (any, error)
}

// Poller re-polls the backend on a fixed interval as a consistency
// backstop, even while push updates are flowing. Each tick invalidates
// every feed topic and then warms each cache key so consumers keep
// getting FRESH data without having to trigger the refetch themselves.
type Poller struct {
	coord    Refresher
	bus      *event.Bus
	interval time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a backstop poller.
func NewPoller(coord Refresher, bus *event.Bus, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		coord:    coord,
		bus:      bus,
		interval: interval,
		// Pace key warm-ups so a tick never bursts the backend.
		limiter: rate.NewLimiter(rate.Limit(4), 1),
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		// Run immediately on start, then on each tick.
		p.tick()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.tick()
			}
		}
	}()
}

// Stop signals the poller to stop and waits for completion.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) tick() {
	now := time.Now()
	for _, topic := range []string{TopicDeviceMetrics, TopicAlertsSummary} {
		p.bus.Publish(p.ctx, event.Event{
			Topic:     topic,
			Source:    "poller",
			Timestamp: now,
		})
	}

	for _, key := range p.coord.Keys() {
		if err := p.limiter.Wait(p.ctx); err != nil {
			return
		}
		if _, err := p.coord.Get(p.ctx, key); err != nil {
			p.logger.Warn("backstop refresh failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}
