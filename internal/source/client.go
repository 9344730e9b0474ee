// Package source fetches the current snapshot of an identifier from the
// remote data source.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/retry"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
	"git.home.luguber.info/inful/depotwatch/internal/version"
)

// Fetcher returns the current snapshot for an identifier. Identifiers the
// source does not know yield a not_found error.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (snapshot.Snapshot, error)
}

// maxBodyBytes bounds the response size read from the source.
const maxBodyBytes = 64 << 20

// Client talks to the changelist endpoint: GET {base}/app/{id}/changelist.
type Client struct {
	httpClient *http.Client
	baseURL    string
	policy     retry.Policy
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRetryPolicy sets the policy applied to transient network failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.policy = p }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		policy:     retry.NewPolicy(config.RetryBackoffFixed, 0, 0, 0),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig creates a client from the source section of the configuration.
func NewFromConfig(cfg config.SourceConfig, logger *slog.Logger) *Client {
	return NewClient(cfg.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.TimeoutDuration()}),
		WithRetryPolicy(retry.FromSource(cfg)),
		WithLogger(logger),
	)
}

// changelistResponse is the envelope returned by the source.
type changelistResponse struct {
	Data json.RawMessage `json:"data"`
}

// Fetch retrieves the snapshot for id. Transient network failures are retried
// according to the client's policy; not_found and malformed_state are not.
func (c *Client) Fetch(ctx context.Context, id string) (snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	attempt := 0
	err := c.policy.Do(ctx, isTransient, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.logger.Debug("retrying fetch",
				logfields.Identifier(id),
				slog.Int("attempt", attempt))
		}
		var err error
		snap, err = c.fetchOnce(ctx, id)
		return err
	})
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snap, nil
}

func (c *Client) fetchOnce(ctx context.Context, id string) (snapshot.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/app/%s/changelist", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return snapshot.Snapshot{}, errors.InternalError("failed to create request").
			WithCause(err).
			WithContext("url", endpoint).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snapshot.Snapshot{}, errors.NetworkError("failed to reach data source").
			WithCause(err).
			WithContext("identifier", id).
			WithContext("url", endpoint).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return snapshot.Snapshot{}, notFound(id)
	}
	if resp.StatusCode >= 400 {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		b := errors.NetworkError(fmt.Sprintf("data source error: %s", resp.Status)).
			WithContext("identifier", id).
			WithContext("code", resp.StatusCode).
			WithContext("response", strings.ReplaceAll(string(limitedBody), "\n", " "))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			b = b.WithRetry(errors.RetryNever)
		}
		return snapshot.Snapshot{}, b.Build()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return snapshot.Snapshot{}, errors.NetworkError("failed to read data source response").
			WithCause(err).
			WithContext("identifier", id).
			Build()
	}

	var envelope changelistResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return snapshot.Snapshot{}, errors.MalformedStateError("data source returned invalid JSON").
			WithCause(err).
			WithContext("identifier", id).
			Build()
	}
	data := strings.TrimSpace(string(envelope.Data))
	if data == "" || data == "null" {
		return snapshot.Snapshot{}, notFound(id)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(envelope.Data, &snap); err != nil {
		return snapshot.Snapshot{}, errors.MalformedStateError("data source returned a malformed snapshot").
			WithCause(err).
			WithContext("identifier", id).
			Build()
	}
	return snap, nil
}

func notFound(id string) error {
	return errors.NotFoundError("identifier not found at data source").
		WithContext("identifier", id).
		Build()
}

func isTransient(err error) bool {
	ce, ok := errors.AsClassified(err)
	return ok && ce.IsCategory(errors.CategoryNetwork) && ce.CanRetry()
}
