package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/pkg/sys"

	"main/internal/model"
	"main/pkg/exception"
)

// Sim generates a bounded random walk per subscribed symbol. It stands in
// for the live stream in development and tests.
type Sim struct {
	interval time.Duration
	spread   decimal.Decimal

	mu       sync.Mutex
	prices   map[string]decimal.Decimal
	handlers []Handler
	started  bool
	stop     chan struct{}
}

func NewSim(interval time.Duration) *Sim {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Sim{
		interval: interval,
		spread:   decimal.NewFromFloat(0.0002),
		prices:   make(map[string]decimal.Decimal),
		stop:     make(chan struct{}),
	}
}

func (f *Sim) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return exception.ErrAlreadyRunning
	}
	f.started = true
	return nil
}

func (f *Sim) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		close(f.stop)
		f.started = false
	}
}

// Subscribe seeds the symbol at an arbitrary base price.
func (f *Sim) Subscribe(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.prices[symbol]; !ok {
		f.prices[symbol] = decimal.NewFromInt(100)
	}
	return nil
}

// SeedPrice pins the walk's starting point for a symbol.
func (f *Sim) SeedPrice(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *Sim) Observe(ctx context.Context, handler Handler) (unsubscribe func()) {
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	launch := len(f.handlers) == 1
	f.mu.Unlock()

	if launch {
		go f.run(ctx)
	}
	return func() {}
}

func (f *Sim) run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case now := <-ticker.C:
			f.step(now)
		}
	}
}

func (f *Sim) step(now time.Time) {
	f.mu.Lock()
	ticks := make([]model.Tick, 0, len(f.prices))
	for symbol, price := range f.prices {
		// walk within +-0.1% per step
		drift := decimal.NewFromFloat((rand.Float64() - 0.5) * 0.002)
		price = price.Mul(decimal.NewFromInt(1).Add(drift))
		f.prices[symbol] = price

		half := price.Mul(f.spread).Div(decimal.NewFromInt(2))
		ticks = append(ticks, model.Tick{
			Symbol: symbol,
			Price:  price,
			Bid:    price.Sub(half),
			Ask:    price.Add(half),
			Volume: decimal.NewFromInt(rand.Int63n(100) + 1),
			At:     now,
		})
	}
	handlers := make([]Handler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for _, tick := range ticks {
		for _, h := range handlers {
			h(tick)
		}
	}
}
