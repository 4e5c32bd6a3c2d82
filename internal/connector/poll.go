package connector

import (
	"context"

	"stockgate/internal/bridge"
	"stockgate/internal/dbf"
	"stockgate/internal/logger"
	"stockgate/internal/order"
)

// pollAssets reads the asset, margin-contract and stock-loan tables and
// publishes one combined snapshot per cash or margin account. One
// account's bad rows do not hold back the others.
func (c *Connector) pollAssets(ctx context.Context) error {
	broker := c.cfg.Broker
	asset, err := dbf.ReadTable(broker.AssetPath, dbf.Asset, 0)
	if err != nil {
		return err
	}
	compact, err := dbf.ReadTable(broker.CreditCompactPath, dbf.CreditCompact, 0)
	if err != nil {
		return err
	}
	loan, err := dbf.ReadTable(broker.LoanQuotaPath, dbf.LoanQuota, 0)
	if err != nil {
		return err
	}

	assetGroups := groupByAccount(asset)
	compactGroups := groupByAccount(compact)
	loanGroups := groupByAccount(loan)

	for _, acct := range c.cfg.Connector.Accounts {
		at, err := order.ParseAccountType(acct.Type)
		if err != nil || at == order.AccountOption {
			continue
		}
		env := bridge.Envelope{
			Prefix:  bridge.PrefixAsset,
			Asset:   assetGroups[acct.ID],
			Compact: compactGroups[acct.ID],
			Loan:    loanGroups[acct.ID],
		}
		if len(env.Asset) == 0 && len(env.Compact) == 0 && len(env.Loan) == 0 {
			continue
		}
		if err := c.publish(ctx, acct.ID, env); err != nil {
			logger.Warnf("connector: publishing asset snapshot failed account=%s err=%v", acct.ID, err)
		}
	}
	return nil
}

// pollActiveOrders republishes which orders the broker still considers
// live: the rows whose newest status report is still accepted.
func (c *Connector) pollActiveOrders(ctx context.Context) error {
	rows, err := dbf.ReadTable(c.cfg.Broker.OrderUpdatesPath, dbf.OrderUpdates, 0)
	if err != nil {
		return err
	}
	active := activeRows(rows)

	// Accounts with nothing live still get an empty report: a starting
	// server needs to learn there is nothing left over to cancel.
	for _, acct := range c.cfg.Connector.Accounts {
		env := bridge.Envelope{Prefix: bridge.PrefixActiveOrders, Data: active[acct.ID]}
		if err := c.publish(ctx, acct.ID, env); err != nil {
			logger.Warnf("connector: publishing active orders failed account=%s err=%v", acct.ID, err)
		}
	}
	return nil
}

// activeRows reduces the append-only report stream to the newest row per
// exchange order number, skipping any order that ever reported a cancel
// or reject, and keeps the ones still sitting accepted at the broker.
func activeRows(rows []dbf.Row) map[string][]dbf.Row {
	latest := make(map[string]dbf.Row)
	dead := make(map[string]bool)
	seq := make([]string, 0)
	for _, row := range rows {
		key := row.Field(dbf.ColOrderNo)
		if key == "" {
			key = row.Field(dbf.ColClientID)
		}
		if key == "" {
			continue
		}
		switch row.Field(dbf.ColOrderStatus) {
		case order.StatusFullCancel, order.StatusRejected:
			dead[key] = true
		}
		if _, ok := latest[key]; !ok {
			seq = append(seq, key)
		}
		latest[key] = row
	}

	out := make(map[string][]dbf.Row)
	for _, key := range seq {
		if dead[key] {
			continue
		}
		row := latest[key]
		if row.Field(dbf.ColOrderStatus) != order.StatusAccepted {
			continue
		}
		acct := row.Field(dbf.ColAccount)
		out[acct] = append(out[acct], row)
	}
	return out
}

// pollOrderUpdates forwards new report rows since the persisted
// checkpoint. The checkpoint only advances after every account's batch
// went out, so a failed publish is retried on the next tick.
func (c *Connector) pollOrderUpdates(ctx context.Context) error {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	source := c.cfg.Broker.OrderUpdatesPath
	since := c.offset(source)
	rows, err := dbf.ReadTable(source, dbf.OrderUpdates, int(since))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	for acct, group := range groupByAccount(rows) {
		env := bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: group}
		if err := c.publish(ctx, acct, env); err != nil {
			return err
		}
		c.audit(ctx, "order_update", acct, bridge.Channel(c.cfg.Bus.PubBase, acct), env)
	}
	c.advanceOffset(ctx, source, since+int64(len(rows)))
	return nil
}

// pollOption publishes fund and position snapshots for option accounts.
func (c *Connector) pollOption(ctx context.Context) error {
	broker := c.cfg.Broker
	fund, err := dbf.ReadTable(broker.OptionFundPath, dbf.OptionFund, 0)
	if err != nil {
		return err
	}
	positions, err := dbf.ReadTable(broker.OptionPositionPath, dbf.OptionPosition, 0)
	if err != nil {
		return err
	}

	fundGroups := groupByAccount(fund)
	posGroups := groupByAccount(positions)

	for _, acct := range c.cfg.Connector.Accounts {
		at, err := order.ParseAccountType(acct.Type)
		if err != nil || at != order.AccountOption {
			continue
		}
		if rows := fundGroups[acct.ID]; len(rows) > 0 {
			env := bridge.Envelope{Prefix: bridge.PrefixOptionFund, Data: rows}
			if err := c.publish(ctx, acct.ID, env); err != nil {
				logger.Warnf("connector: publishing option fund failed account=%s err=%v", acct.ID, err)
			}
		}
		if rows := posGroups[acct.ID]; len(rows) > 0 {
			env := bridge.Envelope{Prefix: bridge.PrefixOptionPosition, Data: rows}
			if err := c.publish(ctx, acct.ID, env); err != nil {
				logger.Warnf("connector: publishing option positions failed account=%s err=%v", acct.ID, err)
			}
		}
	}
	return nil
}

func (c *Connector) publish(ctx context.Context, accountID string, env bridge.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return c.transport.Publish(ctx, bridge.Channel(c.cfg.Bus.PubBase, accountID), payload)
}

func groupByAccount(rows []dbf.Row) map[string][]dbf.Row {
	out := make(map[string][]dbf.Row)
	for _, row := range rows {
		acct := row.Field(dbf.ColAccount)
		if acct == "" {
			continue
		}
		out[acct] = append(out[acct], row)
	}
	return out
}
