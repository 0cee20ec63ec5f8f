// Package redemption tracks campaign redemption activity.
package redemption

import (
	"context"
	"fmt"
	"time"

	"github.com/walldriyan/mypos-sub001/internal/domain"
)

// Window is the rolling window used for redemption counters and stats.
const Window = 24 * time.Hour

// Tracker counts quote and redemption activity per campaign.
type Tracker struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewTracker creates a new redemption tracker.
func NewTracker(repo domain.Repository, cache domain.Cache) *Tracker {
	return &Tracker{
		repo:  repo,
		cache: cache,
	}
}

// Record counts one redemption against a campaign and returns the
// number of redemptions in the current window. Returns 0 without error
// when no cache is configured.
func (t *Tracker) Record(ctx context.Context, tenantID, campaignID string) (int64, error) {
	if tenantID == "" || campaignID == "" {
		return 0, fmt.Errorf("tenantID and campaignID are required")
	}

	if t.cache == nil {
		return 0, nil
	}

	return t.cache.IncrementCounter(ctx, tenantID, counterKey(campaignID), Window)
}

// QuoteCount returns the number of quotes created for a campaign within
// a time window.
func (t *Tracker) QuoteCount(ctx context.Context, tenantID, campaignID string, since time.Time) (int64, error) {
	if tenantID == "" || campaignID == "" {
		return 0, fmt.Errorf("tenantID and campaignID are required")
	}

	if t.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	return t.repo.CountQuotesByCampaign(ctx, tenantID, campaignID, since)
}

func counterKey(campaignID string) string {
	return "redemptions:" + campaignID
}
