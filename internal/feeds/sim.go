package feeds

import (
	"context"
	"math"
	"strings"
	"time"
)

// SimFetcher is a deterministic in-process data source used when no upstream
// API is configured, and in tests. Prices follow a slow sine walk seeded by
// the symbol so successive fetches within the same step produce identical
// payloads (and therefore identical version tokens).
type SimFetcher struct {
	// now is swapped in tests
	now func() time.Time
}

// NewSimFetcher creates a simulator.
func NewSimFetcher() *SimFetcher {
	return &SimFetcher{now: time.Now}
}

func seed(symbol string) float64 {
	var n float64
	for _, r := range strings.ToUpper(symbol) {
		n = n*31 + float64(r)
	}
	return math.Mod(n, 400) + 20
}

// TickerQuote produces a deterministic quote for the current 10s step.
func (f *SimFetcher) TickerQuote(_ context.Context, symbol string) (*Quote, error) {
	now := f.now()
	step := now.Unix() / 10
	base := seed(symbol)
	price := base + 2*math.Sin(float64(step)/7)

	return &Quote{
		Symbol:        strings.ToUpper(symbol),
		Price:         math.Round(price*100) / 100,
		ChangePercent: math.Round(200*math.Sin(float64(step)/13)) / 100,
		Volume:        100_000 + step%50_000,
		AsOf:          step * 10,
	}, nil
}

// TickerList produces one quote per symbol.
func (f *SimFetcher) TickerList(ctx context.Context, symbols []string) ([]Quote, error) {
	quotes := make([]Quote, 0, len(symbols))
	for _, s := range symbols {
		q, err := f.TickerQuote(ctx, s)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, nil
}

// LiveMatches produces a small rolling fixture list whose scores advance on
// the same 10s step as quotes.
func (f *SimFetcher) LiveMatches(_ context.Context) ([]Match, error) {
	step := f.now().Unix() / 10
	minute := int(step % 90)

	return []Match{
		{ID: "m-1001", Home: "Lakers", Away: "Celtics", HomeScore: int(step % 120), AwayScore: int((step + 7) % 120), Minute: minute, Status: "live"},
		{ID: "m-1002", Home: "United", Away: "City", HomeScore: int(step % 4), AwayScore: int((step + 1) % 4), Minute: minute, Status: "live"},
	}, nil
}

var _ Fetcher = (*SimFetcher)(nil)
var _ Fetcher = (*HTTPFetcher)(nil)
