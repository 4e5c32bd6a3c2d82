package tradeserver

import (
	"context"
	"fmt"
	"time"

	"stockgate/internal/account"
	"stockgate/internal/bridge"
	"stockgate/internal/logger"
	"stockgate/internal/order"
	"stockgate/internal/routing"
	"stockgate/internal/scheduler"
)

// SubmitOrder registers the order locally and publishes the insert
// command. The correlation id is assigned here when the caller left it
// empty; the chosen broker action code depends on the current holding.
func (s *Server) SubmitOrder(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order cannot be nil")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive")
	}
	return s.do(ctx, func(ctx context.Context) error {
		tuple, err := s.prepareInsert(o)
		if err != nil {
			return err
		}
		return s.publishCommand(ctx, bridge.Command{Action: bridge.ActionInsertOrder, Data: [][]string{tuple}})
	})
}

// SubmitBatch places several orders in one command. Each order is
// registered individually; one bad order fails the whole batch before
// anything is published.
func (s *Server) SubmitBatch(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return s.do(ctx, func(ctx context.Context) error {
		tuples := make([][]string, 0, len(orders))
		for _, o := range orders {
			if o == nil || o.Quantity <= 0 {
				return fmt.Errorf("batch contains invalid order")
			}
			tuple, err := s.prepareInsert(o)
			if err != nil {
				return err
			}
			tuples = append(tuples, tuple)
		}
		return s.publishCommand(ctx, bridge.Command{Action: bridge.ActionInsertOrder, Data: tuples})
	})
}

func (s *Server) prepareInsert(o *order.Order) ([]string, error) {
	if o.CustID == "" {
		o.CustID = s.genCustID()
	}
	bal := s.state.Balance(account.CurrencyCNY)
	holding, _ := s.state.Holding(o.Ticker)
	code := s.policy.ActionCode(o, bal, holding)
	if err := s.book.Register(o); err != nil {
		return nil, err
	}
	logger.Infof("tradeserver: order submitted cust=%s ticker=%s side=%s qty=%d code=%s", o.CustID, o.Ticker, o.Side, o.Quantity, code)
	return routing.InsertTuple(s.policy, s.session.AccountID, o, code), nil
}

// CancelOrder cancels by correlation id. An order the broker has not
// acknowledged yet has no exchange id to cancel by, so the attempt is
// retried once after a short delay.
func (s *Server) CancelOrder(ctx context.Context, custID string) error {
	return s.cancel(ctx, custID, true)
}

func (s *Server) cancel(ctx context.Context, custID string, mayDefer bool) error {
	return s.do(ctx, func(ctx context.Context) error {
		o, ok := s.book.Get(custID)
		if !ok {
			return fmt.Errorf("%w: %s", order.ErrNotFound, custID)
		}
		if o.State.Terminal() {
			return nil
		}
		if o.ExchangeID == "" {
			if !mayDefer {
				return fmt.Errorf("order %s still has no exchange id, cancel dropped", custID)
			}
			delay := time.Duration(s.cfg.Server.CancelDelaySeconds) * time.Second
			logger.Infof("tradeserver: cancel deferred cust=%s delay=%s", custID, delay)
			scheduler.Once(ctx, delay, func(ctx context.Context) {
				if err := s.cancel(ctx, custID, false); err != nil {
					logger.Warnf("tradeserver: deferred cancel failed cust=%s err=%v", custID, err)
				}
			})
			return nil
		}
		return s.publishCancels(ctx, []string{o.ExchangeID})
	})
}

// CancelAll cancels every non-terminal order with a known exchange id.
func (s *Server) CancelAll(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) error {
		var ids []string
		for _, o := range s.book.Active() {
			if o.ExchangeID != "" {
				ids = append(ids, o.ExchangeID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		return s.publishCancels(ctx, ids)
	})
}

// SubmitConversion places an ETF create or redeem request. Quantity is
// in exchange units; the configured per-ticker unit scales it to shares.
func (s *Server) SubmitConversion(ctx context.Context, ticker string, action order.ConversionAction, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("conversion quantity must be positive")
	}
	unit, ok := s.cfg.Server.ETFUnits[ticker]
	if !ok {
		return fmt.Errorf("no exchange unit configured for %s", ticker)
	}
	return s.do(ctx, func(ctx context.Context) error {
		c := &order.Conversion{
			CustID:          s.genCustID(),
			Ticker:          ticker,
			Action:          action,
			Quantity:        quantity,
			MinExchangeUnit: unit,
		}
		if err := s.conversions.Register(c); err != nil {
			return err
		}
		logger.Infof("tradeserver: conversion submitted cust=%s ticker=%s action=%s shares=%d", c.CustID, ticker, action, c.Shares())
		tuple := routing.ConversionTuple(s.session.AccountID, c)
		return s.publishCommand(ctx, bridge.Command{Action: bridge.ActionInsertOrder, Data: [][]string{tuple}})
	})
}

func (s *Server) publishCancels(ctx context.Context, exchangeIDs []string) error {
	tuples := make([][]string, 0, len(exchangeIDs))
	for _, id := range exchangeIDs {
		tuples = append(tuples, routing.CancelTuple(s.policy, s.session.AccountID, id))
	}
	return s.publishCommand(ctx, bridge.Command{Action: bridge.ActionCancelOrder, Data: tuples})
}

func (s *Server) publishCommand(ctx context.Context, cmd bridge.Command) error {
	payload, err := cmd.Encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.transport.Publish(ctx, s.session.SubChannel, payload)
}
