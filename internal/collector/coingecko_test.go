package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, h http.HandlerFunc) *CoinGeckoFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCoinGeckoFetcher(srv.URL, "", "", 5*time.Second)
}

func TestFetchCurrentPrices(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum,usd-coin", r.URL.Query().Get("ids"))
		assert.Equal(t, "zar", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"zar":1765000.5},"ethereum":{"zar":52990},"usd-coin":{"zar":18.9}}`))
	})

	prices, err := f.FetchCurrentPrices(context.Background(), []string{"bitcoin", "ethereum", "usd-coin"}, "zar")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"bitcoin": 1765000.5, "ethereum": 52990, "usd-coin": 18.9}, prices)
}

func TestFetchCurrentPrices_MissingAssetIsMalformed(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"zar":1765000}}`))
	})

	_, err := f.FetchCurrentPrices(context.Background(), []string{"bitcoin", "solana"}, "zar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestFetchCurrentPrices_NonSuccessStatus(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	})

	_, err := f.FetchCurrentPrices(context.Background(), []string{"bitcoin"}, "zar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestFetchCurrentPrices_SendsAPIKey(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-cg-demo-api-key"))
		w.Write([]byte(`{"bitcoin":{"zar":1}}`))
	})
	f.APIKey = "secret"

	_, err := f.FetchCurrentPrices(context.Background(), []string{"bitcoin"}, "zar")
	require.NoError(t, err)
}

func TestFetchHistory(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/market_chart", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("days"))
		assert.Equal(t, "hourly", r.URL.Query().Get("interval"))
		// out of order on purpose, plus one null sample
		w.Write([]byte(`{"prices":[[1716213600000,52100],[1716206400000,51200],[1716210000000,null],[1716217200000,52900]]}`))
	})

	points, err := f.FetchHistory(context.Background(), "ethereum", "zar", 24*time.Hour, "hourly")
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 51200.0, points[0].Price)
	assert.Equal(t, 52100.0, points[1].Price)
	assert.Equal(t, 52900.0, points[2].Price)
	assert.Equal(t, time.UnixMilli(1716217200000), points[2].Timestamp)
}

func TestFetchHistory_Empty(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[]}`))
	})

	points, err := f.FetchHistory(context.Background(), "solana", "zar", 24*time.Hour, "hourly")
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestFetchHistory_Malformed(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"coin not found"}`))
	})

	_, err := f.FetchHistory(context.Background(), "nope", "zar", 24*time.Hour, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestFetchHistory_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.FetchHistory(ctx, "bitcoin", "zar", 24*time.Hour, "hourly")
	require.Error(t, err)
}

func TestAssetIDs(t *testing.T) {
	for _, a := range QuotedAssets() {
		id, ok := AssetID(a)
		assert.True(t, ok, "asset %s", a)
		assert.NotEmpty(t, id)
	}
	_, ok := AssetID("ZAR")
	assert.False(t, ok)
	assert.Equal(t, "zar", FiatCode("ZAR"))
}

func TestFetchCurrentPrices_NonFiniteIsMalformed(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"zar":1e999}}`))
	})

	prices, err := f.FetchCurrentPrices(context.Background(), []string{"bitcoin"}, "zar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Nil(t, prices)
}

func TestFetchHistory_SkipsNonFiniteSamples(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[[1716206400000,51200],[1716210000000,1e999],[1716213600000,52100]]}`))
	})

	points, err := f.FetchHistory(context.Background(), "ethereum", "zar", 24*time.Hour, "hourly")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 52100.0, points[1].Price)
}
