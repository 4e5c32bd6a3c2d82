package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionBody = `{
  "status": "ok",
  "login_info": {
    "account_id": "100001",
    "account_type": "margin",
    "connector_pub_ch": "snap|100001",
    "connector_sub_ch": "cmd|100001"
  }
}`

func TestParseSession(t *testing.T) {
	s, err := ParseSession([]byte(sessionBody))
	require.NoError(t, err)
	assert.Equal(t, "100001", s.AccountID)
	assert.Equal(t, "margin", s.AccountType)
	assert.Equal(t, "snap|100001", s.PubChannel)
	assert.Equal(t, "cmd|100001", s.SubChannel)
}

func TestParseSessionErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"missing login_info", `{"status":"ok"}`},
		{"missing account id", `{"login_info":{"connector_pub_ch":"a","connector_sub_ch":"b"}}`},
		{"missing channels", `{"login_info":{"account_id":"100001"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSession([]byte(tc.body))
			assert.Error(t, err)
		})
	}
}

func TestFetch(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("account_id")
		_, _ = w.Write([]byte(sessionBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	s, err := c.Fetch(context.Background(), "100001")
	require.NoError(t, err)
	assert.Equal(t, "100001", s.AccountID)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "100001", gotQuery)
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Fetch(context.Background(), "100001")
	assert.Error(t, err)

	_, err = NewClient("", "").Fetch(context.Background(), "100001")
	assert.Error(t, err)
}
