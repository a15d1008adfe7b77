package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherQuotes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quotes/AAPL":
			_, _ = w.Write([]byte(`{"symbol":"AAPL","price":189.5,"change_percent":1.2,"volume":1000,"as_of":1700000000}`))
		case "/quotes":
			assert.Equal(t, []string{"AAPL", "MSFT"}, r.URL.Query()["symbols"])
			_, _ = w.Write([]byte(`{"quotes":[{"symbol":"AAPL","price":189.5},{"symbol":"MSFT","price":402.1}]}`))
		case "/matches/live":
			_, _ = w.Write([]byte(`{"matches":[{"id":"m-9","home":"A","away":"B","home_score":2,"away_score":1,"minute":70,"status":"live"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer upstream.Close()

	f := NewHTTPFetcher(upstream.URL, upstream.Client())
	ctx := context.Background()

	q, err := f.TickerQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, 189.5, q.Price)
	assert.Equal(t, int64(1700000000), q.AsOf)

	quotes, err := f.TickerList(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "MSFT", quotes[1].Symbol)

	matches, err := f.LiveMatches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].HomeScore)
	assert.Equal(t, "live", matches[0].Status)
}

func TestHTTPFetcherUpstreamErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	f := NewHTTPFetcher(upstream.URL, upstream.Client())
	_, err := f.TickerQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestHTTPFetcherMalformedFieldsDegrade(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":"not-a-number"}`))
	}))
	defer upstream.Close()

	f := NewHTTPFetcher(upstream.URL, upstream.Client())
	q, err := f.TickerQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	// gjson coerces what it can; the symbol falls back to the request symbol
	assert.Equal(t, "AAPL", q.Symbol)
}
