// Package connector runs next to the broker terminal. It polls the
// terminal's export tables, publishes per-account snapshots on the bus,
// and turns inbound commands into instruction-file records the terminal
// scans.
package connector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/logger"
	"stockgate/internal/order"
	"stockgate/internal/scheduler"
	"stockgate/internal/store"
)

const publishTimeout = 5 * time.Second

type Connector struct {
	cfg       *config.Config
	transport bus.Transport
	store     *store.Store
	limiter   *rate.Limiter

	pollMu  sync.Mutex // serializes order-update polls (ticker vs watcher)
	offMu   sync.Mutex
	offsets map[string]int64
}

func New(cfg *config.Config, transport bus.Transport, st *store.Store) (*Connector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("connector requires a config")
	}
	if transport == nil {
		return nil, fmt.Errorf("connector requires a transport")
	}
	c := &Connector{
		cfg:       cfg,
		transport: transport,
		store:     st,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Connector.CommandsPerSecond), int(cfg.Connector.CommandsPerSecond)+1),
		offsets:   make(map[string]int64),
	}

	if st != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		offsets, err := st.LoadOffsets(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading offsets failed: %w", err)
		}
		c.offsets = offsets
	}
	return c, nil
}

// Run starts every polling and command loop and blocks until ctx is done
// or the trading session ends.
func (c *Connector) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	broker := c.cfg.Broker

	g.Go(func() error {
		scheduler.Periodic(ctx, "assets", time.Duration(broker.AssetIntervalSeconds)*time.Second, c.pollAssets)
		return ctx.Err()
	})
	g.Go(func() error {
		scheduler.Periodic(ctx, "active-orders", time.Duration(broker.AssetIntervalSeconds)*time.Second, c.pollActiveOrders)
		return ctx.Err()
	})
	g.Go(func() error {
		scheduler.Periodic(ctx, "order-updates", time.Duration(broker.OrderPollMillis)*time.Millisecond, c.pollOrderUpdates)
		return ctx.Err()
	})
	if c.hasAccountType(order.AccountOption) {
		g.Go(func() error {
			scheduler.Periodic(ctx, "option", time.Duration(broker.OptionIntervalSeconds)*time.Second, c.pollOption)
			return ctx.Err()
		})
	}
	g.Go(func() error {
		return scheduler.PeriodicFatal(ctx, "auto-stop", time.Minute, c.checkSessionEnd)
	})
	for _, acct := range c.cfg.Connector.Accounts {
		acct := acct
		g.Go(func() error {
			return c.runCommandLoop(ctx, acct)
		})
	}
	if c.cfg.Connector.WatchOrderUpdates {
		g.Go(func() error {
			return c.watchOrderUpdates(ctx)
		})
	}

	logger.Infof("connector started accounts=%d bus=%s", len(c.cfg.Connector.Accounts), c.cfg.Bus.Mode)
	return g.Wait()
}

func (c *Connector) hasAccountType(t order.AccountType) bool {
	for _, acct := range c.cfg.Connector.Accounts {
		at, err := order.ParseAccountType(acct.Type)
		if err == nil && at == t {
			return true
		}
	}
	return false
}

// checkSessionEnd stops the process once the exchange-local wall clock
// passes the configured end-of-session hour. The broker terminal should
// not stay connected overnight.
func (c *Connector) checkSessionEnd(context.Context) error {
	if pastSessionEnd(time.Now(), c.cfg.App.Location(), c.cfg.Connector.AutoStopHour) {
		return fmt.Errorf("session ended, auto stop hour=%d", c.cfg.Connector.AutoStopHour)
	}
	return nil
}

func pastSessionEnd(now time.Time, loc *time.Location, hour int) bool {
	return now.In(loc).Hour() >= hour
}

func (c *Connector) offset(source string) int64 {
	c.offMu.Lock()
	defer c.offMu.Unlock()
	return c.offsets[source]
}

func (c *Connector) advanceOffset(ctx context.Context, source string, row int64) {
	c.offMu.Lock()
	c.offsets[source] = row
	c.offMu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.SaveOffset(ctx, source, row); err != nil {
		logger.Warnf("connector: saving offset failed source=%s err=%v", source, err)
	}
}

func (c *Connector) instructionPath(counterType string) string {
	return filepath.Join(c.cfg.Broker.InstructionDir, "instructions_"+counterType+".dbf")
}
