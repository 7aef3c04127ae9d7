package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"applister/internal/applister"
)

const (
	// ThreatTable is the PostgREST table holding the feed.
	ThreatTable = "cyber_threats"

	clientInfo = "applister-cli"
)

// SupabaseFeed reads the threat table through the Supabase REST API using the
// project's anonymous key.
type SupabaseFeed struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

var _ applister.ThreatFeed = (*SupabaseFeed)(nil)

// SupabaseOptions configures a SupabaseFeed.
type SupabaseOptions struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
	Logger   applister.Logger
}

// NewSupabaseFeed creates a SupabaseFeed. An empty URL or key is accepted; the
// feed then reports ErrFeedUnavailable on every fetch.
func NewSupabaseFeed(opts SupabaseOptions) *SupabaseFeed {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.CheckRetry = retryablehttp.ErrorPropagatedRetryPolicy
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil
	if opts.Logger != nil {
		client.Logger = retryablehttp.LeveledLogger(opts.Logger)
	}

	return &SupabaseFeed{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.URL), "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		client:  client,
	}
}

func (f *SupabaseFeed) Name() string { return "supabase" }

// Configured reports whether both the project URL and key are set.
func (f *SupabaseFeed) Configured() bool {
	return f.baseURL != "" && f.apiKey != ""
}

// FetchThreats returns the feed ordered by severity, then newest first.
func (f *SupabaseFeed) FetchThreats(ctx context.Context) ([]applister.ThreatRecord, error) {
	if !f.Configured() {
		return nil, fmt.Errorf("supabase url or key not set: %w", applister.ErrFeedUnavailable)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, f.endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", f.apiKey)
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("x-client-info", clientInfo)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching threats: %w: %w", applister.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetching threats: %s %q: %w", resp.Status, strings.TrimSpace(string(body)), applister.ErrFeedUnavailable)
	}

	records, err := decodeThreats(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", applister.ErrFeedUnavailable, err)
	}
	return records, nil
}

func (f *SupabaseFeed) endpoint() string {
	q := url.Values{}
	q.Set("select", "target_app,title,description,severity,url")
	q.Set("order", "severity.desc,created_at.desc")
	return f.baseURL + "/rest/v1/" + ThreatTable + "?" + q.Encode()
}
