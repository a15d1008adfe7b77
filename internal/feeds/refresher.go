package feeds

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"livefeed/internal/cache"
	"livefeed/internal/core"
	"livefeed/internal/observability"
	"livefeed/internal/scheduler"
	"livefeed/internal/sse"
)

// fetchTimeout bounds a single refresh tick's upstream call.
const fetchTimeout = 10 * time.Second

// Refresher composes the cache and the hub: it fetches upstream data, writes
// it into the cache, and broadcasts on the resource type's channel only when
// the version token actually changed. The write and the broadcast are two
// separate steps on purpose; a reader may observe the new value slightly
// before or after the notification arrives.
//
// A failed fetch is logged and the previous cached value stays valid until
// its TTL expires: stale-but-available beats no data.
type Refresher struct {
	cache   *cache.VersionedCache
	hub     *sse.Hub
	fetcher Fetcher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRefresher wires the refresh pipeline. metrics may be nil; a nil logger
// selects slog.Default.
func NewRefresher(c *cache.VersionedCache, h *sse.Hub, f Fetcher, m *observability.Metrics, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{cache: c, hub: h, fetcher: f, metrics: m, logger: logger}
}

// store writes value under (rt, id) and broadcasts when the version changed.
// The broadcast carries the same lowercased identifier the cache keys on, so
// stream consumers and poll callers agree on the id.
func (r *Refresher) store(rt core.ResourceType, id string, value any) {
	id = strings.ToLower(id)
	var prevVersion string
	if prev, ok := r.cache.Get(rt, id); ok {
		prevVersion = prev.Version
	}

	ent := r.cache.Set(rt, id, value, 0)
	if ent.Version == prevVersion {
		return
	}

	channel := string(rt)
	n := r.hub.Broadcast(channel, core.LiveEvent{
		Event: channel,
		Payload: map[string]any{
			"identifier": id,
			"version":    ent.Version,
			"updated_at": ent.UpdatedAt.UTC(),
		},
	})
	if r.metrics != nil {
		r.metrics.EventsBroadcast.WithLabelValues(channel).Inc()
	}
	r.logger.Debug("live data updated", "type", channel, "id", id, "version", ent.Version, "notified", n)
}

// RefreshTickers refreshes each configured symbol plus the list aggregate.
func (r *Refresher) RefreshTickers(symbols []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	quotes, err := r.fetcher.TickerList(ctx, symbols)
	if err != nil {
		return err
	}
	for i := range quotes {
		r.store(core.ResourceFinanceTicker, quotes[i].Symbol, quotes[i])
	}
	r.store(core.ResourceFinanceList, "*", map[string]any{"quotes": quotes})
	return nil
}

// RefreshMatches refreshes every live match plus the list aggregate.
func (r *Refresher) RefreshMatches() error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	matches, err := r.fetcher.LiveMatches(ctx)
	if err != nil {
		return err
	}
	for i := range matches {
		r.store(core.ResourceSportsMatch, matches[i].ID, matches[i])
	}
	r.store(core.ResourceSportsList, "*", map[string]any{"matches": matches})
	return nil
}

// RefreshDashboard rebuilds the dashboard aggregate from cache stats and the
// current list entries.
func (r *Refresher) RefreshDashboard() error {
	summary := map[string]any{
		"generated_at": time.Now().UTC().Truncate(time.Minute),
	}
	if ent, ok := r.cache.Get(core.ResourceFinanceList, "*"); ok {
		summary["finance"] = ent.Value
	}
	if ent, ok := r.cache.Get(core.ResourceSportsList, "*"); ok {
		summary["sports"] = ent.Value
	}
	r.store(core.ResourceDashboard, "*", summary)
	return nil
}

// RegisterJobs installs the standard refresh jobs on the scheduler with
// intervals derived from each resource type's poll policy.
func (r *Refresher) RegisterJobs(sched *scheduler.Scheduler, symbols []string) {
	r.addJob(sched, "refresh-tickers", core.ResourceFinanceTicker, func() error {
		return r.RefreshTickers(symbols)
	})
	r.addJob(sched, "refresh-matches", core.ResourceSportsMatch, func() error {
		return r.RefreshMatches()
	})
	r.addJob(sched, "refresh-dashboard", core.ResourceDashboard, func() error {
		return r.RefreshDashboard()
	})
}

// addJob wraps a refresh func with error containment and metrics. Errors stop
// at the job boundary so one flaky upstream can never kill live refreshing.
func (r *Refresher) addJob(sched *scheduler.Scheduler, name string, rt core.ResourceType, fn func() error) {
	interval := core.PolicyFor(rt).PollInterval
	sched.AddJob(name, func() {
		if err := fn(); err != nil {
			if r.metrics != nil {
				r.metrics.JobErrors.WithLabelValues(name).Inc()
			}
			r.logger.Warn("refresh job failed, serving stale data until TTL", "job", name, "error", err)
			return
		}
		if r.metrics != nil {
			r.metrics.JobRuns.WithLabelValues(name).Inc()
		}
	}, interval)
}
