package collector

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"BridgeFeed/internal/model"
)

const defaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoFetcher implements Fetcher using the CoinGecko public REST API.
type CoinGeckoFetcher struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Client       *http.Client
}

// NewCoinGeckoFetcher creates a fetcher with optional proxy support.
// An empty baseURL selects the public endpoint.
func NewCoinGeckoFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *CoinGeckoFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CoinGeckoFetcher{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		APIKeyHeader: "x-cg-demo-api-key",
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *CoinGeckoFetcher) Name() string { return "coingecko" }

func (f *CoinGeckoFetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "BridgeFeed/1.0")
	if f.APIKey != "" {
		req.Header.Set(f.APIKeyHeader, f.APIKey)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	return body, nil
}

// FetchCurrentPrices calls /simple/price. Every requested id must be present in the
// response, otherwise the whole response is rejected.
func (f *CoinGeckoFetcher) FetchCurrentPrices(ctx context.Context, ids []string, vs string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", vs)
	body, err := f.get(ctx, f.BaseURL+"/simple/price?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("coingecko simple price: %w", err)
	}

	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		r := gjson.GetBytes(body, gjson.Escape(id)+"."+gjson.Escape(vs))
		if r.Type != gjson.Number {
			return nil, fmt.Errorf("coingecko simple price: %w: missing %s.%s", ErrMalformed, id, vs)
		}
		p := r.Float()
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, fmt.Errorf("coingecko simple price: %w: %s.%s out of range", ErrMalformed, id, vs)
		}
		prices[id] = p
	}
	return prices, nil
}

// FetchHistory calls /coins/{id}/market_chart. The lookback is rounded up to whole days.
func (f *CoinGeckoFetcher) FetchHistory(ctx context.Context, id, vs string, lookback time.Duration, interval string) ([]model.RawPoint, error) {
	days := int(math.Ceil(lookback.Hours() / 24))
	if days < 1 {
		days = 1
	}
	q := url.Values{}
	q.Set("vs_currency", vs)
	q.Set("days", fmt.Sprintf("%d", days))
	if interval != "" {
		q.Set("interval", interval)
	}
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", f.BaseURL, url.PathEscape(id), q.Encode())
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("coingecko market chart: %w", err)
	}

	prices := gjson.GetBytes(body, "prices")
	if !prices.IsArray() {
		return nil, fmt.Errorf("coingecko market chart: %w: no prices array", ErrMalformed)
	}

	points := make([]model.RawPoint, 0, len(prices.Array()))
	for _, pair := range prices.Array() {
		v := pair.Array()
		if len(v) < 2 || v[0].Type != gjson.Number || v[1].Type != gjson.Number {
			continue // skip null samples
		}
		if p := v[1].Float(); math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		points = append(points, model.RawPoint{
			Timestamp: time.UnixMilli(v[0].Int()),
			Price:     v[1].Float(),
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}
