// Package feed reads recent outgoing transactions from the bank gateway
// that operators transfer payouts through.
package feed

import (
	"PayoutRecon/internal/core/domain"
	"PayoutRecon/internal/core/ports"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeout = 10 * time.Second
	listPath       = "/transactions/list"

	// Upper bound on a feed response body.
	maxBodyBytes = 4 << 20
)

// Config holds the gateway credentials. It is injected at construction;
// the client never reads process configuration on its own.
type Config struct {
	BaseURL       string
	SecretKey     string
	AccountNumber string
	Timeout       time.Duration
	// AmountScale is the number of decimal places to shift gateway amounts
	// by to reach minor units. Zero when the gateway already reports them.
	AmountScale int32
}

// Configured reports whether every credential needed for a fetch is present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.AccountNumber) != ""
}

// Client implements ports.TransactionFeed over the gateway's HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
	group      singleflight.Group
}

// Ensure compliance
var _ ports.TransactionFeed = (*Client)(nil)

// NewClient creates a feed client.
func NewClient(cfg Config, baseLogger *zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        baseLogger.With().Str("component", "feed_client").Logger(),
	}
}

// ListRecentOutgoing returns up to limit recent outgoing transactions.
// Missing credentials yield a batch with Configured=false and no error.
// Concurrent callers asking for the same limit share one request.
func (c *Client) ListRecentOutgoing(ctx context.Context, limit int) (domain.FeedBatch, error) {
	if !c.cfg.Configured() {
		return domain.FeedBatch{Configured: false}, nil
	}

	key := strconv.Itoa(limit)
	// The shared fetch must not die with whichever caller started it;
	// the http client timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.fetch(fetchCtx, limit)
	})

	select {
	case <-ctx.Done():
		return domain.FeedBatch{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.FeedBatch{}, res.Err
		}
		entries := res.Val.([]domain.FeedEntry)
		return domain.FeedBatch{Entries: entries, Configured: true}, nil
	}
}

func (c *Client) fetch(ctx context.Context, limit int) ([]domain.FeedEntry, error) {
	q := url.Values{}
	q.Set("account_number", c.cfg.AccountNumber)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.cfg.BaseURL + listPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	raw, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.FeedEntry, 0, len(raw))
	for _, r := range raw {
		entry, ok := r.toEntry(c.cfg.AmountScale)
		if !ok {
			c.log.Debug().Str("transaction_id", entry.ID).Msg("Feed entry has an unusable amount, it will not match")
		}
		entries = append(entries, entry)
	}

	c.log.Debug().Int("count", len(entries)).Msg("Fetched outgoing transactions")
	return entries, nil
}
