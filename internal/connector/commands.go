package connector

import (
	"context"
	"encoding/json"
	"time"

	"stockgate/internal/bridge"
	"stockgate/internal/config"
	"stockgate/internal/dbf"
	"stockgate/internal/logger"
)

// runCommandLoop consumes one account's command channel until ctx ends.
func (c *Connector) runCommandLoop(ctx context.Context, acct config.AccountConfig) error {
	channel := bridge.Channel(c.cfg.Bus.CmdBase, acct.ID)
	msgs, err := c.transport.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	logger.Infof("connector: command loop started account=%s channel=%s", acct.ID, channel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			c.handleCommand(ctx, acct, channel, payload)
		}
	}
}

func (c *Connector) handleCommand(ctx context.Context, acct config.AccountConfig, channel string, payload []byte) {
	if err := bridge.ValidateCommand(payload); err != nil {
		logger.Warnf("connector: command rejected account=%s err=%v", acct.ID, err)
		c.auditRaw(ctx, "command_rejected", acct.ID, channel, payload)
		return
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}
	cmd, err := bridge.DecodeCommand(payload)
	if err != nil {
		logger.Warnf("connector: command undecodable account=%s err=%v", acct.ID, err)
		return
	}

	// Tuples may target different counters in one command; each counter
	// has its own instruction file.
	byCounter := make(map[string][][]string)
	for _, tuple := range cmd.Data {
		counter := tuple[2]
		byCounter[counter] = append(byCounter[counter], tuple)
	}
	for counter, tuples := range byCounter {
		path := c.instructionPath(counter)
		if err := dbf.AppendRecords(path, dbf.Instructions, tuples); err != nil {
			logger.Errorf("connector: writing instructions failed account=%s path=%s err=%v", acct.ID, path, err)
			continue
		}
		logger.Infof("connector: instructions written account=%s action=%s counter=%s n=%d", acct.ID, cmd.Action, counter, len(tuples))
	}

	c.auditRaw(ctx, "command", acct.ID, channel, payload)
}

func (c *Connector) audit(ctx context.Context, kind, account, channel string, v any) {
	if c.store == nil || !c.cfg.Store.AuditEnabled {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.auditRaw(ctx, kind, account, channel, payload)
}

func (c *Connector) auditRaw(ctx context.Context, kind, account, channel string, payload []byte) {
	if c.store == nil || !c.cfg.Store.AuditEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.store.AppendAudit(ctx, kind, account, channel, payload); err != nil {
		logger.Warnf("connector: audit write failed kind=%s err=%v", kind, err)
	}
}
