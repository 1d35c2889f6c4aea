package feed

import (
	"context"
	"sync"

	"main/internal/model"
)

// Handler consumes normalized ticks.
type Handler func(tick model.Tick)

// Feed is a market data source. Start blocks until the stream is
// established; ticks flow to the handler until the context ends.
type Feed interface {
	Start(ctx context.Context) error
	Subscribe(ctx context.Context, symbol string) error
	Observe(ctx context.Context, handler Handler) (unsubscribe func())
	Close()
}

// Cache keeps the latest tick per symbol. It satisfies the market view the
// risk path reads for reference prices.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]model.Tick
}

func NewCache() *Cache {
	return &Cache{ticks: make(map[string]model.Tick)}
}

// Put stores the tick, keeping the previous one's indicators when the new
// tick carries none.
func (c *Cache) Put(tick model.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tick.IndicatorValues == nil {
		if prev, ok := c.ticks[tick.Symbol]; ok {
			tick.IndicatorValues = prev.IndicatorValues
		}
	}
	c.ticks[tick.Symbol] = tick
}

// LastTick returns the most recent tick for the symbol.
func (c *Cache) LastTick(symbol string) (model.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tick, ok := c.ticks[symbol]
	return tick, ok
}
