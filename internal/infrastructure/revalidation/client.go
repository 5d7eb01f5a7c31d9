// Package revalidation asks the Next.js frontend to drop its cached render of
// a path or tag.
package revalidation

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/metrics"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const revalidateEndpoint = "/api/revalidate"

// Target is a single frontend revalidation: either a path or a cache tag.
type Target struct {
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// PathTarget targets a route path. path is a RoutePath without slashes.
func PathTarget(path string) Target {
	return Target{Path: "/" + strings.Trim(path, "/")}
}

func TagTarget(tag string) Target {
	return Target{Tag: tag}
}

func (t Target) String() string {
	if t.Tag != "" {
		return "tag:" + t.Tag
	}
	return "path:" + t.Path
}

// ParseTarget reverses Target.String.
func ParseTarget(s string) (Target, error) {
	switch {
	case strings.HasPrefix(s, "tag:"):
		return Target{Tag: strings.TrimPrefix(s, "tag:")}, nil
	case strings.HasPrefix(s, "path:"):
		return Target{Path: strings.TrimPrefix(s, "path:")}, nil
	}
	return Target{}, fmt.Errorf("invalid revalidation target %q", s)
}

// Config configures the outbound client. An empty BaseURL disables calls.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Concurrency int
}

// Summary reports the outcome of a fan-out.
type Summary struct {
	Attempted int      `json:"attempted"`
	Failed    []string `json:"failed,omitempty"`
}

// Client issues GET {frontend}/api/revalidate calls with a bounded timeout
// and no retry.
type Client struct {
	http        *resty.Client
	logger      *logging.ChanneledLogger
	metrics     *metrics.Registry
	concurrency int
	enabled     bool
}

func NewClient(cfg Config, logger *logging.ChanneledLogger, registry *metrics.Registry) *Client {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "nextpress-go")

	return &Client{
		http:        httpClient,
		logger:      logger,
		metrics:     registry,
		concurrency: concurrency,
		enabled:     cfg.BaseURL != "",
	}
}

// Enabled reports whether a frontend URL is configured.
func (c *Client) Enabled() bool { return c.enabled }

// Revalidate performs one call. The response body is ignored; any status
// other than 200 is an error.
func (c *Client) Revalidate(ctx context.Context, target Target) error {
	if !c.enabled {
		return nil
	}

	req := c.http.R().SetContext(ctx)
	if target.Tag != "" {
		req.SetQueryParam("tag", target.Tag)
	} else {
		req.SetQueryParam("path", target.Path)
	}

	start := time.Now()
	resp, err := req.Get(revalidateEndpoint)
	if err != nil {
		c.metrics.Revalidation(metrics.RevalidateFailed)
		return fmt.Errorf("revalidate %s: %w", target, err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.metrics.Revalidation(metrics.RevalidateStatus)
		return fmt.Errorf("revalidate %s: unexpected status %d", target, resp.StatusCode())
	}

	c.metrics.Revalidation(metrics.RevalidateOK)
	c.logger.Revalidation().Debug("Frontend revalidated", "target", target.String(), "duration", time.Since(start))
	return nil
}

// RevalidateAll fans targets out with bounded concurrency. Failures are
// logged and reported in the summary, never returned.
func (c *Client) RevalidateAll(ctx context.Context, targets []Target) Summary {
	summary := Summary{Attempted: len(targets)}
	if !c.enabled || len(targets) == 0 {
		summary.Attempted = 0
		return summary
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.concurrency)

	for _, target := range targets {
		g.Go(func() error {
			if err := c.Revalidate(ctx, target); err != nil {
				c.logger.Revalidation().Warn("Frontend revalidation failed", "target", target.String(), "error", err.Error())
				mu.Lock()
				summary.Failed = append(summary.Failed, target.String())
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.Failed)
	return summary
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}
