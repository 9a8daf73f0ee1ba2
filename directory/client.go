package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fortressi/disburse"
)

// Client looks up recipient lists from a directory server.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ disburse.Directory = (*Client)(nil)

// NewClient creates a client for the server at baseURL. A nil hc means
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// ListRecipients implements disburse.Directory. Any status other than 200
// is an error.
func (c *Client) ListRecipients(ctx context.Context, id disburse.AccountID) ([]disburse.AccountID, error) {
	u := fmt.Sprintf("%s/v1/directories/%s/recipients", c.baseURL, url.PathEscape(string(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory %s: unexpected status %s", id, resp.Status)
	}

	var list []disburse.AccountID
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding recipients of %s: %w", id, err)
	}
	return list, nil
}
