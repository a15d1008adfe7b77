package feeds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livefeed/internal/cache"
	"livefeed/internal/core"
	"livefeed/internal/scheduler"
	"livefeed/internal/sse"
)

// staticFetcher returns fixed data so version changes are fully controlled.
type staticFetcher struct {
	quotes  []Quote
	matches []Match
	err     error
}

func (f *staticFetcher) TickerQuote(_ context.Context, symbol string) (*Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := f.quotes[0]
	return &q, nil
}

func (f *staticFetcher) TickerList(_ context.Context, _ []string) ([]Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func (f *staticFetcher) LiveMatches(_ context.Context) ([]Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func TestRefresherBroadcastsOnlyOnChange(t *testing.T) {
	c := cache.New(100)
	h := sse.NewHub(nil)
	fetcher := &staticFetcher{quotes: []Quote{{Symbol: "AAPL", Price: 100, AsOf: 1}}}
	r := NewRefresher(c, h, fetcher, nil, nil)

	clientID := h.RegisterClient("watcher")
	h.Subscribe(clientID, string(core.ResourceFinanceTicker))

	require.NoError(t, r.RefreshTickers([]string{"AAPL"}))

	select {
	case ev := <-h.Events(clientID):
		assert.Equal(t, string(core.ResourceFinanceTicker), ev.Channel)
	default:
		t.Fatal("first refresh should broadcast")
	}

	// identical payload, identical version: no second broadcast
	require.NoError(t, r.RefreshTickers([]string{"AAPL"}))
	select {
	case ev := <-h.Events(clientID):
		t.Fatalf("unchanged data must not broadcast, got %+v", ev)
	default:
	}

	// changed payload broadcasts again
	fetcher.quotes[0].Price = 101
	require.NoError(t, r.RefreshTickers([]string{"AAPL"}))
	select {
	case ev := <-h.Events(clientID):
		assert.Equal(t, string(core.ResourceFinanceTicker), ev.Event)
	default:
		t.Fatal("changed data should broadcast")
	}
}

func TestRefresherWritesListAggregates(t *testing.T) {
	c := cache.New(100)
	h := sse.NewHub(nil)
	fetcher := &staticFetcher{
		quotes:  []Quote{{Symbol: "AAPL", Price: 100}},
		matches: []Match{{ID: "m-1", Home: "A", Away: "B", Status: "live"}},
	}
	r := NewRefresher(c, h, fetcher, nil, nil)

	require.NoError(t, r.RefreshTickers([]string{"AAPL"}))
	require.NoError(t, r.RefreshMatches())
	require.NoError(t, r.RefreshDashboard())

	_, ok := c.Get(core.ResourceFinanceTicker, "aapl")
	assert.True(t, ok, "per-symbol entry")
	_, ok = c.Get(core.ResourceFinanceList, "*")
	assert.True(t, ok, "finance list aggregate")
	_, ok = c.Get(core.ResourceSportsMatch, "m-1")
	assert.True(t, ok, "per-match entry")

	dash, ok := c.Get(core.ResourceDashboard, "*")
	require.True(t, ok, "dashboard aggregate")
	summary, ok := dash.Value.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, summary, "finance")
	assert.Contains(t, summary, "sports")
}

func TestRefresherFetchFailureKeepsStaleData(t *testing.T) {
	c := cache.New(100)
	h := sse.NewHub(nil)
	fetcher := &staticFetcher{quotes: []Quote{{Symbol: "AAPL", Price: 100}}}
	r := NewRefresher(c, h, fetcher, nil, nil)

	require.NoError(t, r.RefreshTickers([]string{"AAPL"}))
	fetcher.err = errors.New("upstream down")
	require.Error(t, r.RefreshTickers([]string{"AAPL"}))

	// previous value stays valid until its TTL naturally expires
	ent, ok := c.Get(core.ResourceFinanceTicker, "aapl")
	require.True(t, ok)
	assert.Equal(t, 100.0, ent.Value.(Quote).Price)
}

func TestRegisterJobsInstallsStandardJobs(t *testing.T) {
	c := cache.New(100)
	h := sse.NewHub(nil)
	r := NewRefresher(c, h, NewSimFetcher(), nil, nil)

	sched := scheduler.New(nil)
	r.RegisterJobs(sched, []string{"AAPL"})

	assert.ElementsMatch(t,
		[]string{"refresh-tickers", "refresh-matches", "refresh-dashboard"},
		sched.JobNames())
}

func TestSimFetcherDeterministicWithinStep(t *testing.T) {
	f := NewSimFetcher()
	fixed := time.Unix(1_700_000_000, 0)
	f.now = func() time.Time { return fixed }

	a, err := f.TickerQuote(context.Background(), "aapl")
	require.NoError(t, err)
	b, err := f.TickerQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same step and symbol must produce identical quotes")

	matches, err := f.LiveMatches(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}
