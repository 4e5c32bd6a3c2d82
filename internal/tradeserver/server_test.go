package tradeserver

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockgate/internal/bridge"
	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/dbf"
	"stockgate/internal/login"
	"stockgate/internal/order"
)

func testServer(t *testing.T, acctType string) (*Server, *bus.Memory, <-chan []byte) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Timezone: "Asia/Shanghai"},
		Server: config.ServerConfig{
			CancelDelaySeconds:   1,
			StartupCancelReports: 3,
			OptionCloseThreshold: 0.5,
			ETFUnits:             map[string]int64{"510300": 900000},
		},
	}
	session := &login.Session{
		AccountID:   "100001",
		AccountType: acctType,
		PubChannel:  "snap|100001",
		SubChannel:  "cmd|100001",
	}
	transport := bus.NewMemory()
	t.Cleanup(func() { transport.Close() })

	s, err := New(cfg, session, transport)
	require.NoError(t, err)

	cmds, err := transport.Subscribe(context.Background(), session.SubChannel)
	require.NoError(t, err)

	s.Start()
	t.Cleanup(s.Stop)
	return s, transport, cmds
}

func recvCommand(t *testing.T, cmds <-chan []byte) bridge.Command {
	t.Helper()
	select {
	case payload := <-cmds:
		require.NoError(t, bridge.ValidateCommand(payload))
		cmd, err := bridge.DecodeCommand(payload)
		require.NoError(t, err)
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command published")
		return bridge.Command{}
	}
}

func TestSubmitOrderPublishesInsert(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	o := &order.Order{Ticker: "600000", Side: order.SideBuy, Quantity: 100, LimitPrice: decimal.RequireFromString("10.50"), Kind: "0"}
	require.NoError(t, s.SubmitOrder(context.Background(), o))
	assert.NotEmpty(t, o.CustID)

	cmd := recvCommand(t, cmds)
	assert.Equal(t, bridge.ActionInsertOrder, cmd.Action)
	require.Len(t, cmd.Data, 1)
	tuple := cmd.Data[0]
	assert.Equal(t, "O", tuple[0])
	assert.Equal(t, o.CustID, tuple[1])
	assert.Equal(t, "1", tuple[6], "cash buy")

	view := s.Snapshot()
	require.Len(t, view.Orders, 1)
	assert.Equal(t, order.StateSubmitted, view.Orders[0].State)
}

func TestSubmitBatch(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	orders := []*order.Order{
		{Ticker: "600000", Side: order.SideBuy, Quantity: 100, LimitPrice: decimal.RequireFromString("10.00"), Kind: "0"},
		{Ticker: "000001", Side: order.SideSell, Quantity: 200, LimitPrice: decimal.RequireFromString("8.00"), Kind: "0"},
	}
	require.NoError(t, s.SubmitBatch(context.Background(), orders))

	cmd := recvCommand(t, cmds)
	require.Len(t, cmd.Data, 2)
	assert.Equal(t, "1", cmd.Data[0][6])
	assert.Equal(t, "2", cmd.Data[1][6])
	assert.NotEqual(t, orders[0].CustID, orders[1].CustID)
}

func TestSnapshotFlushesThrottledUpdate(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	// The submission refreshes the view; the ack right behind it lands
	// inside the throttle window and must still surface.
	o := &order.Order{Ticker: "600000", Side: order.SideBuy, Quantity: 100, LimitPrice: decimal.RequireFromString("10.50"), Kind: "0"}
	require.NoError(t, s.SubmitOrder(context.Background(), o))
	recvCommand(t, cmds)
	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow(o.CustID, "EX001", "0", "", "", "2026-09-01 09:30:00"),
	}}

	assert.Eventually(t, func() bool {
		for _, got := range s.Snapshot().Orders {
			if got.CustID == o.CustID {
				return got.State == order.StateAccepted && got.ExchangeID == "EX001"
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCustIDsShareSessionPrefix(t *testing.T) {
	s, _, _ := testServer(t, "cash")

	first := s.genCustID()
	second := s.genCustID()
	assert.NotEqual(t, first, second)
	assert.Equal(t, strings.Split(first, "-")[0], strings.Split(second, "-")[0],
		"the DDHHMMSS prefix comes from the process start time")
	assert.Equal(t, s.started.In(s.loc).Format("02150405"), strings.Split(first, "-")[0])
}

func TestSubmitOrderRejectsInvalid(t *testing.T) {
	s, _, _ := testServer(t, "cash")
	assert.Error(t, s.SubmitOrder(context.Background(), nil))
	assert.Error(t, s.SubmitOrder(context.Background(), &order.Order{Ticker: "600000", Quantity: 0}))
}

func updateRow(custID, exchangeID, status, filled, price, at string) dbf.Row {
	return dbf.Row{
		dbf.ColAccount:     "100001",
		dbf.ColClientID:    custID,
		dbf.ColOrderNo:     exchangeID,
		dbf.ColSymbol:      "600000",
		dbf.ColOrderStatus: status,
		dbf.ColFilledQty:   filled,
		dbf.ColAvgPrice:    price,
		dbf.ColOrderTime:   at,
	}
}

func TestOrderLifecycleViaEnvelopes(t *testing.T) {
	s, _, _ := testServer(t, "cash")

	o := &order.Order{Ticker: "600000", Side: order.SideBuy, Quantity: 100, LimitPrice: decimal.RequireFromString("10.50"), Kind: "0"}
	require.NoError(t, s.SubmitOrder(context.Background(), o))

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow(o.CustID, "EX001", "0", "", "", "2026-09-01 09:30:00"),
		updateRow(o.CustID, "EX001", "1", "40", "10.49", "2026-09-01 09:30:05"),
	}}

	assert.Eventually(t, func() bool {
		for _, got := range s.Snapshot().Orders {
			if got.CustID == o.CustID {
				return got.State == order.StatePartiallyFilled && got.ExchangeID == "EX001"
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow(o.CustID, "EX001", "2", "100", "10.50", "2026-09-01 09:31:00"),
	}}
	assert.Eventually(t, func() bool {
		for _, got := range s.Snapshot().Orders {
			if got.CustID == o.CustID {
				return got.State == order.StateFilled && got.Filled() == 100
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnknownOrderReportIsDropped(t *testing.T) {
	s, _, _ := testServer(t, "cash")

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow("someone-else", "EX777", "2", "100", "10.00", "2026-09-01 09:30:00"),
	}}
	s.msgCh <- bridge.Envelope{Prefix: "Mystery"}

	assert.Eventually(t, func() bool {
		return len(s.Snapshot().Orders) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestAssetEnvelopeRebuildsState(t *testing.T) {
	s, _, _ := testServer(t, "cash")

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixAsset, Asset: []dbf.Row{
		{dbf.ColAccount: "100001", "S3": "50000.00", "S4": "42000.00"},
		{dbf.ColAccount: "100001", "S1": "600000", "S2": "200", "S3": "200", "S4": "9.80", "S5": "0", "S8": "2100.00"},
	}}

	assert.Eventually(t, func() bool {
		state := s.Snapshot().State
		h, ok := state.Holding("600000")
		return ok && h.LongHolding == 200 && state.Balance("CNY").Cash.Equal(decimal.RequireFromString("50000.00"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelAfterAck(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	o := &order.Order{Ticker: "600000", Side: order.SideBuy, Quantity: 100, LimitPrice: decimal.RequireFromString("10.50"), Kind: "0"}
	require.NoError(t, s.SubmitOrder(context.Background(), o))
	recvCommand(t, cmds) // insert

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow(o.CustID, "EX001", "0", "", "", "2026-09-01 09:30:00"),
	}}
	assert.Eventually(t, func() bool {
		for _, got := range s.Snapshot().Orders {
			if got.CustID == o.CustID {
				return got.ExchangeID == "EX001"
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.CancelOrder(context.Background(), o.CustID))
	cmd := recvCommand(t, cmds)
	assert.Equal(t, bridge.ActionCancelOrder, cmd.Action)
	require.Len(t, cmd.Data, 1)
	assert.Equal(t, "EX001", cmd.Data[0][4])
}

func TestCancelUnknownOrder(t *testing.T) {
	s, _, _ := testServer(t, "cash")
	assert.ErrorIs(t, s.CancelOrder(context.Background(), "nope"), order.ErrNotFound)
}

func TestStartupCancelSweep(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	past := time.Now().In(s.loc).Add(-time.Hour).Format("2006-01-02 15:04:05")
	future := time.Now().In(s.loc).Add(time.Hour).Format("2006-01-02 15:04:05")
	stale := dbf.Row{
		dbf.ColAccount: "100001", dbf.ColOrderNo: "EX900",
		dbf.ColOrderStatus: "0", dbf.ColOrderTime: past,
	}
	fresh := dbf.Row{
		dbf.ColAccount: "100001", dbf.ColOrderNo: "EX901",
		dbf.ColOrderStatus: "0", dbf.ColOrderTime: future,
	}

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixActiveOrders, Data: []dbf.Row{stale, fresh}}

	cmd := recvCommand(t, cmds)
	assert.Equal(t, bridge.ActionCancelOrder, cmd.Action)
	require.Len(t, cmd.Data, 1, "orders placed after boot are left alone")
	assert.Equal(t, "EX900", cmd.Data[0][4])

	t.Run("later reports stop sweeping", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixActiveOrders, Data: []dbf.Row{stale}}
		}
		// At most the remaining budgeted reports may cancel again.
		deadline := time.After(500 * time.Millisecond)
		got := 0
		for {
			select {
			case <-cmds:
				got++
			case <-deadline:
				assert.LessOrEqual(t, got, 2)
				return
			}
		}
	})
}

func TestSubmitConversion(t *testing.T) {
	s, _, cmds := testServer(t, "cash")

	require.NoError(t, s.SubmitConversion(context.Background(), "510300", order.ConversionCreate, 2))
	cmd := recvCommand(t, cmds)
	require.Len(t, cmd.Data, 1)
	tuple := cmd.Data[0]
	assert.Equal(t, "F", tuple[6])
	assert.Equal(t, "1800000", tuple[7])
	custID := tuple[1]

	// The full-fill report completes the conversion instead of touching
	// the order book.
	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOrderUpdate, Data: []dbf.Row{
		updateRow(custID, "EX500", "2", "1800000", "0", "2026-09-01 10:00:00"),
	}}

	assert.Eventually(t, func() bool {
		err := s.do(context.Background(), func(context.Context) error {
			if _, pending := s.conversions.Pending(custID); pending {
				return errors.New("still pending")
			}
			return nil
		})
		return err == nil && len(s.Snapshot().Orders) == 0
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("unconfigured ticker is rejected", func(t *testing.T) {
		assert.Error(t, s.SubmitConversion(context.Background(), "999999", order.ConversionCreate, 1))
	})
}

func TestOptionEnvelopes(t *testing.T) {
	s, _, _ := testServer(t, "option")

	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOptionFund, Data: []dbf.Row{
		{dbf.ColAccount: "100001", "BALANCE": "200000.00", "AVAILABLE": "150000.00", "MARGIN_RATIO": "0.30"},
	}}
	s.msgCh <- bridge.Envelope{Prefix: bridge.PrefixOptionPosition, Data: []dbf.Row{
		{dbf.ColAccount: "100001", dbf.ColSymbol: "10005000", "SIDE": "1", "QTY": "4", "AVAIL_QTY": "4", "AVG_COST": "0.0300", "MKT_VALUE": "110.00"},
	}}

	assert.Eventually(t, func() bool {
		state := s.Snapshot().State
		h, ok := state.Holding("10005000")
		return ok && h.ShortHolding == 4 && state.Balance("CNY").MarginRatio.Equal(decimal.RequireFromString("0.30"))
	}, 2*time.Second, 10*time.Millisecond)
}
