// Package login fetches a trade server's session descriptor from the
// session service. The descriptor names the account and the bus
// channels the connector publishes and listens on for that account.
package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Session is the per-account descriptor handed out at login.
type Session struct {
	AccountID   string
	AccountType string
	PubChannel  string // connector -> server snapshots
	SubChannel  string // server -> connector commands
}

type Client struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewClient(url, token string) *Client {
	return &Client{URL: url, Token: token, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Fetch retrieves and validates the session descriptor for an account.
func (c *Client) Fetch(ctx context.Context, accountID string) (*Session, error) {
	if strings.TrimSpace(c.URL) == "" {
		return nil, errors.New("session service URL not configured")
	}

	url := fmt.Sprintf("%s?account_id=%s", strings.TrimRight(c.URL, "/"), accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return ParseSession(body)
}

// ParseSession extracts the login_info block from a session service
// response.
func ParseSession(body []byte) (*Session, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("session response is not valid JSON")
	}
	info := gjson.GetBytes(body, "login_info")
	if !info.Exists() {
		return nil, errors.New("session response missing login_info")
	}

	s := &Session{
		AccountID:   info.Get("account_id").String(),
		AccountType: info.Get("account_type").String(),
		PubChannel:  info.Get("connector_pub_ch").String(),
		SubChannel:  info.Get("connector_sub_ch").String(),
	}
	if s.AccountID == "" {
		return nil, errors.New("login_info missing account_id")
	}
	if s.PubChannel == "" || s.SubChannel == "" {
		return nil, fmt.Errorf("login_info for %s missing channels", s.AccountID)
	}
	return s, nil
}
