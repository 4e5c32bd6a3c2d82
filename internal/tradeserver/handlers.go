package tradeserver

import (
	"context"
	"errors"

	"stockgate/internal/account"
	"stockgate/internal/bridge"
	"stockgate/internal/dbf"
	"stockgate/internal/logger"
	"stockgate/internal/order"
)

func (s *Server) handleEnvelope(env bridge.Envelope) {
	switch env.Kind() {
	case bridge.KindAsset:
		s.applyAsset(env)
	case bridge.KindOrderUpdate:
		s.applyOrderUpdates(env.Data)
	case bridge.KindActiveOrders:
		s.applyActiveOrders(env.Data)
	case bridge.KindOptionFund:
		s.lastOptionFund = env.Data
		s.applyOption()
	case bridge.KindOptionPosition:
		s.lastOptionPos = env.Data
		s.applyOption()
	default:
		logger.Warnf("tradeserver: dropping unknown envelope prefix=%q account=%s", env.Prefix, s.session.AccountID)
	}
	s.refreshSnapshot(false)
}

// applyAsset replaces the account view wholesale. A snapshot that fails
// to reconcile is dropped and the previous view survives until the next
// poll.
func (s *Server) applyAsset(env bridge.Envelope) {
	state, err := account.Rebuild(s.session.AccountID, env.Asset, env.Compact, env.Loan)
	if err != nil {
		logger.Warnf("tradeserver: asset snapshot dropped account=%s err=%v", s.session.AccountID, err)
		return
	}
	s.state = state
}

func (s *Server) applyOption() {
	state, err := account.RebuildOption(s.session.AccountID, s.lastOptionFund, s.lastOptionPos)
	if err != nil {
		logger.Warnf("tradeserver: option snapshot dropped account=%s err=%v", s.session.AccountID, err)
		return
	}
	s.state = state
}

// applyOrderUpdates runs report rows through the conversion book first,
// then the order state machine. A report for an id this session never
// placed raced ahead of us or belongs to another process; it is dropped.
func (s *Server) applyOrderUpdates(rows []dbf.Row) {
	for _, row := range rows {
		u, err := order.UpdateFromRow(row, s.loc)
		if err != nil {
			logger.Warnf("tradeserver: bad report row account=%s err=%v", s.session.AccountID, err)
			continue
		}

		if _, ok := s.conversions.Pending(u.CustID); ok {
			if u.Status == order.StatusFullFill {
				if c, done := s.conversions.Complete(u.CustID, u.Time); done {
					logger.Infof("tradeserver: conversion completed account=%s ticker=%s action=%s", s.session.AccountID, c.Ticker, c.Action)
				}
			}
			continue
		}

		o, err := s.book.Apply(u)
		switch {
		case err == nil:
			logger.Debugf("tradeserver: report applied cust=%s status=%s state=%s", u.CustID, u.Status, o.State)
		case errors.Is(err, order.ErrNotFound):
			logger.Debugf("tradeserver: report for unknown order dropped cust=%s", u.CustID)
		default:
			logger.Warnf("tradeserver: report rejected cust=%s err=%v", u.CustID, err)
		}
	}
}

// applyActiveOrders implements the startup sweep: for the first few
// reports after boot, any order the broker still holds live that was
// placed before this process started and is not in the local book gets
// canceled. Later reports are informational only.
func (s *Server) applyActiveOrders(rows []dbf.Row) {
	if s.startupReports >= s.cfg.Server.StartupCancelReports {
		return
	}
	s.startupReports++

	var stale []string
	for _, row := range rows {
		exchangeID := row.Field(dbf.ColOrderNo)
		if exchangeID == "" {
			continue
		}
		if _, ok := s.book.ByExchangeID(exchangeID); ok {
			continue
		}
		if custID := row.Field(dbf.ColClientID); custID != "" {
			if _, ok := s.book.Get(custID); ok {
				continue
			}
		}
		placedAt, err := order.ParseBrokerTime(row.Field(dbf.ColOrderTime), s.loc)
		if err != nil || placedAt.IsZero() || !placedAt.Before(s.started) {
			continue
		}
		stale = append(stale, exchangeID)
	}
	if len(stale) == 0 {
		return
	}

	logger.Infof("tradeserver: canceling %d pre-start orders account=%s report=%d", len(stale), s.session.AccountID, s.startupReports)
	if err := s.publishCancels(context.Background(), stale); err != nil {
		logger.Warnf("tradeserver: startup cancel failed account=%s err=%v", s.session.AccountID, err)
	}
}
