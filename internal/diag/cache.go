package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache is an optional Redis-backed cache for diagnostic reports.
// DNS probes and provider API calls are slow and rate-limited, so
// dashboards polling the report can share a short-lived cached copy.
// The cache is a read-through layer: callers who need a fresh result
// bypass it entirely.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a cache around the given Redis client.
// A zero TTL defaults to 5 minutes.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{client: client, ttl: ttl}
}

func reportKey(domain string) string {
	return "edc:report:" + domain
}

// Get returns the cached report for the domain, or ok=false on a miss.
// Redis errors are treated as misses so a cache outage never breaks
// diagnostics.
func (c *ReportCache) Get(ctx context.Context, domain string) (Report, bool) {
	data, err := c.client.Get(ctx, reportKey(domain)).Bytes()
	if err != nil {
		return Report{}, false
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, false
	}
	return report, true
}

// Set stores the report under the domain key with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey(report.Domain), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

// Invalidate drops the cached report for the domain.
func (c *ReportCache) Invalidate(ctx context.Context, domain string) error {
	return c.client.Del(ctx, reportKey(domain)).Err()
}
