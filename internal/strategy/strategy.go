package strategy

import (
	"github.com/abdoElHodaky/algotrade/internal/bar"
	"github.com/abdoElHodaky/algotrade/internal/cache"
)

// Strategy is user-supplied trading logic driven by the Engine's event
// dispatchers. Within one dispatcher call, callbacks run one after
// another on the caller's goroutine. The Engine holds no per-strategy
// lock, so dispatcher calls made from different goroutines (for example a
// timer callback alongside bar processing) can run callbacks for the same
// strategy concurrently.
type Strategy interface {
	Name() string
	OnStart(ctx *Context) error
	OnStop(ctx *Context) error
	OnTradeTick(ctx *Context, tick cache.TradeTick) error
	OnQuoteTick(ctx *Context, tick cache.QuoteTick) error
	OnBar(ctx *Context, b bar.Bar) error
	OnTimer(ctx *Context, name string) error
}

// BaseStrategy supplies no-op implementations of every callback so
// concrete strategies only need to override what they use.
type BaseStrategy struct{}

func (BaseStrategy) OnStart(*Context) error                      { return nil }
func (BaseStrategy) OnStop(*Context) error                       { return nil }
func (BaseStrategy) OnTradeTick(*Context, cache.TradeTick) error { return nil }
func (BaseStrategy) OnQuoteTick(*Context, cache.QuoteTick) error { return nil }
func (BaseStrategy) OnBar(*Context, bar.Bar) error               { return nil }
func (BaseStrategy) OnTimer(*Context, string) error              { return nil }
