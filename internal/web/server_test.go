package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"stockgate/internal/bus"
	"stockgate/internal/config"
	"stockgate/internal/login"
	"stockgate/internal/order"
	"stockgate/internal/tradeserver"
)

func testTradeServer(t *testing.T) (*tradeserver.Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Timezone: "Asia/Shanghai"},
		Server: config.ServerConfig{
			CancelDelaySeconds:   1,
			StartupCancelReports: 3,
			OptionCloseThreshold: 0.5,
		},
	}
	session := &login.Session{
		AccountID:   "100001",
		AccountType: "cash",
		PubChannel:  "snap|100001",
		SubChannel:  "cmd|100001",
	}
	transport := bus.NewMemory()
	t.Cleanup(func() { transport.Close() })

	ts, err := tradeserver.New(cfg, session, transport)
	require.NoError(t, err)
	ts.Start()
	t.Cleanup(ts.Stop)
	return ts, cfg
}

func submitOrders(t *testing.T, ts *tradeserver.Server, custIDs ...string) {
	t.Helper()
	for _, id := range custIDs {
		o := &order.Order{
			CustID: id, Ticker: "600000", Side: order.SideBuy,
			Quantity: 100, LimitPrice: decimal.RequireFromString("10.00"), Kind: "0",
		}
		require.NoError(t, ts.SubmitOrder(context.Background(), o))
	}
	assert.Eventually(t, func() bool {
		return len(ts.Snapshot().Orders) == len(custIDs)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrdersEndpointSortsWithoutMutatingSnapshot(t *testing.T) {
	ts, cfg := testTradeServer(t)
	submitOrders(t, ts, "01093001-5", "01093001-2", "01093001-9", "01093001-1", "01093001-7")

	srv := NewServer("127.0.0.1:0", cfg, ts)

	view := ts.Snapshot()
	before := append([]*order.Order(nil), view.Orders...)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ids := gjson.Get(rec.Body.String(), "orders.#.cust_id").Array()
	require.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1].String(), ids[i].String(), "response is sorted")
	}

	for i := range before {
		assert.Same(t, before[i], view.Orders[i], "handler must not reorder the shared snapshot slice")
	}
}

func TestStateAndHealthEndpoints(t *testing.T) {
	ts, cfg := testTradeServer(t)
	srv := NewServer("127.0.0.1:0", cfg, ts)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100001", gjson.Get(rec.Body.String(), "account").String())

	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cash", gjson.Get(rec.Body.String(), "type").String())
}
