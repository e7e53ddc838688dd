package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/phrazzld/batchload/internal/httpclient"
)

// HTTP fetches an item with GET {baseURL}/{itemID}. The body is read and
// discarded; any 2xx response counts as success.
type HTTP struct {
	client  httpclient.Client
	baseURL string
}

// NewHTTP creates an HTTP fetcher. A nil client uses httpclient.NewDefaultClient.
func NewHTTP(baseURL string, client httpclient.Client) (*HTTP, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", u.Redacted())
	}
	if client == nil {
		client = httpclient.NewDefaultClient(0)
	}
	return &HTTP{client: client, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// URL returns the address fetched for itemID.
func (h *HTTP) URL(itemID string) string {
	return h.baseURL + "/" + url.PathEscape(itemID)
}

// Fetch downloads the item. The context bounds the request.
func (h *HTTP) Fetch(ctx context.Context, itemID string) error {
	if _, err := h.client.Get(ctx, h.URL(itemID)); err != nil {
		return fmt.Errorf("fetch %s: %w", itemID, err)
	}
	return nil
}
