package connector

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"stockgate/internal/logger"
)

// watchOrderUpdates polls the report table immediately when the terminal
// writes to it, instead of waiting out the poll interval. The periodic
// poll keeps running as a fallback; both serialize on pollMu.
func (c *Connector) watchOrderUpdates(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(c.cfg.Broker.OrderUpdatesPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Infof("connector: watching order updates path=%s", target)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return ctx.Err()
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.pollOrderUpdates(ctx); err != nil {
				logger.Warnf("connector: watch-triggered poll failed err=%v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return ctx.Err()
			}
			logger.Warnf("connector: watcher error err=%v", err)
		}
	}
}
