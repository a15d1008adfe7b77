// Package feeds contains the upstream data fetchers and the refresh pipeline
// that the scheduler drives: fetch, write to the versioned cache, and
// broadcast an invalidation event when the version token changed.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"livefeed/internal/httpclient"
)

// Quote is one ticker snapshot.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	AsOf          int64   `json:"as_of"`
}

// Match is one live sports match snapshot.
type Match struct {
	ID        string `json:"id"`
	Home      string `json:"home"`
	Away      string `json:"away"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Minute    int    `json:"minute"`
	Status    string `json:"status"`
}

// Fetcher retrieves live data from an upstream source. Implementations must
// honor the context deadline; fetches run inside scheduler job callbacks,
// never under the cache lock.
type Fetcher interface {
	TickerQuote(ctx context.Context, symbol string) (*Quote, error)
	TickerList(ctx context.Context, symbols []string) ([]Quote, error)
	LiveMatches(ctx context.Context) ([]Match, error)
}

// HTTPFetcher pulls live data from a JSON API. Field extraction goes through
// gjson so a partially reshaped upstream response degrades to zero values
// instead of a decode failure.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher rooted at baseURL. A nil client selects
// the shared factory defaults.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = httpclient.NewDefaultHTTPClient()
	}
	return &HTTPFetcher{baseURL: baseURL, client: client}
}

func (f *HTTPFetcher) getJSON(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream body: %w", err)
	}
	return body, nil
}

// TickerQuote fetches one quote from /quotes/{symbol}.
func (f *HTTPFetcher) TickerQuote(ctx context.Context, symbol string) (*Quote, error) {
	body, err := f.getJSON(ctx, "/quotes/"+url.PathEscape(symbol))
	if err != nil {
		return nil, err
	}
	q := quoteFromJSON(gjson.ParseBytes(body))
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return &q, nil
}

// TickerList fetches /quotes?symbols=a,b,c.
func (f *HTTPFetcher) TickerList(ctx context.Context, symbols []string) ([]Quote, error) {
	v := url.Values{}
	for _, s := range symbols {
		v.Add("symbols", s)
	}
	body, err := f.getJSON(ctx, "/quotes?"+v.Encode())
	if err != nil {
		return nil, err
	}

	var quotes []Quote
	gjson.GetBytes(body, "quotes").ForEach(func(_, item gjson.Result) bool {
		quotes = append(quotes, quoteFromJSON(item))
		return true
	})
	return quotes, nil
}

// LiveMatches fetches /matches/live.
func (f *HTTPFetcher) LiveMatches(ctx context.Context) ([]Match, error) {
	body, err := f.getJSON(ctx, "/matches/live")
	if err != nil {
		return nil, err
	}

	var matches []Match
	gjson.GetBytes(body, "matches").ForEach(func(_, item gjson.Result) bool {
		matches = append(matches, Match{
			ID:        item.Get("id").String(),
			Home:      item.Get("home").String(),
			Away:      item.Get("away").String(),
			HomeScore: int(item.Get("home_score").Int()),
			AwayScore: int(item.Get("away_score").Int()),
			Minute:    int(item.Get("minute").Int()),
			Status:    item.Get("status").String(),
		})
		return true
	})
	return matches, nil
}

func quoteFromJSON(item gjson.Result) Quote {
	asOf := item.Get("as_of").Int()
	if asOf == 0 {
		asOf = time.Now().Unix()
	}
	return Quote{
		Symbol:        item.Get("symbol").String(),
		Price:         item.Get("price").Float(),
		ChangePercent: item.Get("change_percent").Float(),
		Volume:        item.Get("volume").Int(),
		AsOf:          asOf,
	}
}
