package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Messages is the client interface of the upstream message history API.
type Messages interface {
	// Fetch returns one page of the message listing.
	Fetch(ctx context.Context, skip, limit int) (*model.MessagePage, error)
	// FetchAll pages through the whole history.
	FetchAll(ctx context.Context) ([]*model.Message, error)
}

type messagesClient struct {
	baseURL    string
	httpClient *http.Client
	pageLimit  int
	maxRetries int
	backoff    time.Duration
}

type MessagesOption func(*messagesClient)

func WithHTTPClient(c *http.Client) MessagesOption {
	return func(m *messagesClient) {
		m.httpClient = c
	}
}

func WithPageLimit(limit int) MessagesOption {
	return func(m *messagesClient) {
		m.pageLimit = limit
	}
}

func WithFetchRetries(n int, backoff time.Duration) MessagesOption {
	return func(m *messagesClient) {
		m.maxRetries = n
		m.backoff = backoff
	}
}

// NewMessages creates a client for the message history API rooted at
// baseURL (e.g. "https://example.com/api").
func NewMessages(baseURL string, options ...MessagesOption) Messages {
	c := &messagesClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageLimit:  500,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *messagesClient) Fetch(ctx context.Context, skip, limit int) (*model.MessagePage, error) {
	endpoint := fmt.Sprintf("%s/messages/?%s", c.baseURL, url.Values{
		"skip":  []string{fmt.Sprintf("%d", skip)},
		"limit": []string{fmt.Sprintf("%d", limit)},
	}.Encode())

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, goerr.Wrap(err, "fetch canceled")
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, goerr.Wrap(ctx.Err(), "fetch canceled")
			case <-time.After(c.backoff * time.Duration(1<<(attempt-1))):
			}
		}

		page, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return page, nil
		}
		lastErr = err
		logging.From(ctx).Warn("message fetch failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"error", err)
	}

	return nil, goerr.Wrap(lastErr, "message fetch failed after retries",
		goerr.V("endpoint", endpoint),
		goerr.V("retries", c.maxRetries))
}

func (c *messagesClient) fetchOnce(ctx context.Context, endpoint string) (*model.MessagePage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, goerr.New("unexpected status from message API",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	var page model.MessagePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, goerr.Wrap(err, "failed to decode message page")
	}
	return &page, nil
}

func (c *messagesClient) FetchAll(ctx context.Context) ([]*model.Message, error) {
	var all []*model.Message
	for skip := 0; ; skip += c.pageLimit {
		page, err := c.Fetch(ctx, skip, c.pageLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if len(page.Items) < c.pageLimit {
			break
		}
		if page.Total > 0 && len(all) >= page.Total {
			break
		}
	}

	logging.From(ctx).Info("fetched message history", "count", len(all))
	return all, nil
}
