// Package tradeserver owns one broker account. A single event loop
// applies connector snapshots and order reports to in-memory state and
// turns trading requests into bus commands, so no state is ever touched
// from two goroutines.
package tradeserver

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"stockgate/internal/account"
	"stockgate/internal/bridge"
	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/dbf"
	"stockgate/internal/logger"
	"stockgate/internal/login"
	"stockgate/internal/order"
	"stockgate/internal/routing"
)

const snapshotThrottle = 50 * time.Millisecond

type Server struct {
	cfg       *config.Config
	session   *login.Session
	acctType  order.AccountType
	transport bus.Transport
	policy    routing.Policy
	loc       *time.Location

	msgCh  chan bridge.Envelope
	callCh chan call
	stopCh chan struct{}
	wg     sync.WaitGroup

	state       *account.State
	book        *order.Book
	conversions *order.ConversionBook

	lastOptionFund []dbf.Row
	lastOptionPos  []dbf.Row

	started        time.Time
	startupReports int
	seq            int

	stateSnapshot atomic.Value
	lastSnapshot  time.Time
	snapDirty     bool
}

// call is one API request executed inside the event loop.
type call struct {
	fn    func(ctx context.Context) error
	reply chan error
}

func New(cfg *config.Config, session *login.Session, transport bus.Transport) (*Server, error) {
	if cfg == nil || session == nil {
		return nil, fmt.Errorf("trade server requires config and session")
	}
	if transport == nil {
		return nil, fmt.Errorf("trade server requires a transport")
	}
	acctType, err := order.ParseAccountType(session.AccountType)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		session:     session,
		acctType:    acctType,
		transport:   transport,
		policy:      routing.ForAccountType(acctType, cfg.Server.OptionCloseThreshold),
		loc:         cfg.App.Location(),
		msgCh:       make(chan bridge.Envelope, 100),
		callCh:      make(chan call, 16),
		stopCh:      make(chan struct{}),
		state:       account.NewState(),
		book:        order.NewBook(),
		conversions: order.NewConversionBook(),
		started:     time.Now().UTC(),
	}
	s.refreshSnapshot(true)
	return s, nil
}

func (s *Server) Start() {
	s.wg.Add(1)
	go s.runLoop()
}

func (s *Server) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Server) AccountID() string {
	return s.session.AccountID
}

// Run subscribes to the connector's snapshot channel and feeds the event
// loop until ctx ends. The transport reconnects underneath; a closed
// message channel means the transport itself shut down.
func (s *Server) Run(ctx context.Context) error {
	msgs, err := s.transport.Subscribe(ctx, s.session.PubChannel)
	if err != nil {
		return err
	}
	s.Start()
	defer s.Stop()
	logger.Infof("tradeserver: started account=%s type=%s channel=%s", s.session.AccountID, s.acctType, s.session.PubChannel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return fmt.Errorf("snapshot channel closed")
			}
			env, err := bridge.DecodeEnvelope(payload)
			if err != nil {
				logger.Warnf("tradeserver: dropping undecodable message account=%s err=%v", s.session.AccountID, err)
				continue
			}
			select {
			case s.msgCh <- env:
			case <-s.stopCh:
				return nil
			}
		}
	}
}

func (s *Server) runLoop() {
	defer s.wg.Done()
	flush := time.NewTicker(snapshotThrottle)
	defer flush.Stop()
	for {
		select {
		case env := <-s.msgCh:
			s.handleEnvelope(env)
		case c := <-s.callCh:
			c.reply <- s.safeCall(c.fn)
			s.refreshSnapshot(false)
		case <-flush.C:
			// Flush a change the throttle held back, so the published
			// view never stays behind the loop state.
			if s.snapDirty {
				s.refreshSnapshot(true)
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Server) safeCall(fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("tradeserver: panic in call: %v", r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(context.Background())
}

// do runs fn inside the event loop and waits for its result.
func (s *Server) do(ctx context.Context, fn func(context.Context) error) error {
	c := call{fn: fn, reply: make(chan error, 1)}
	select {
	case s.callCh <- c:
	case <-s.stopCh:
		return fmt.Errorf("trade server is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// genCustID builds the session-unique correlation id: the process start
// time as a DDHHMMSS prefix and a monotonically increasing sequence, so
// every id of one session shares the same prefix.
func (s *Server) genCustID() string {
	at := s.started.In(s.loc)
	s.seq++
	return fmt.Sprintf("%02d%02d%02d%02d-%d", at.Day(), at.Hour(), at.Minute(), at.Second(), s.seq)
}

// View is the read-only state handed to the debug surface.
type View struct {
	AccountID string         `json:"account_id"`
	Type      string         `json:"type"`
	State     *account.State `json:"state"`
	Orders    []*order.Order `json:"orders"`
}

func (s *Server) Snapshot() *View {
	val := s.stateSnapshot.Load()
	if val == nil {
		return &View{AccountID: s.session.AccountID, Type: s.acctType.String(), State: account.NewState()}
	}
	return val.(*View)
}

func (s *Server) refreshSnapshot(force bool) {
	if !force && !s.lastSnapshot.IsZero() && time.Since(s.lastSnapshot) < snapshotThrottle {
		s.snapDirty = true
		return
	}
	view := &View{
		AccountID: s.session.AccountID,
		Type:      s.acctType.String(),
		State:     s.state.Clone(),
	}
	for _, o := range s.book.All() {
		cp := *o
		view.Orders = append(view.Orders, &cp)
	}
	s.stateSnapshot.Store(view)
	s.lastSnapshot = time.Now()
	s.snapDirty = false
}
