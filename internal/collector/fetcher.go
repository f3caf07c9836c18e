package collector

import (
	"context"
	"errors"
	"strings"
	"time"

	"BridgeFeed/internal/model"
)

// ErrMalformed is returned when a response decodes but lacks the expected fields.
var ErrMalformed = errors.New("malformed response")

// Fetcher defines the read-only operations of a market-data source.
type Fetcher interface {
	// FetchCurrentPrices returns the spot price of every id in vs.
	FetchCurrentPrices(ctx context.Context, ids []string, vs string) (map[string]float64, error)
	// FetchHistory returns chronologically ordered points covering lookback at the given granularity.
	FetchHistory(ctx context.Context, id, vs string, lookback time.Duration, interval string) ([]model.RawPoint, error)
	Name() string
}

// assetIDs maps an asset to its market-data identifier.
var assetIDs = map[model.Asset]string{
	model.BTC:  "bitcoin",
	model.ETH:  "ethereum",
	model.SOL:  "solana",
	model.USDC: "usd-coin",
}

// AssetID returns the market-data identifier of the asset, if it has one.
func AssetID(a model.Asset) (string, bool) {
	id, ok := assetIDs[a]
	return id, ok
}

// QuotedAssets lists the assets whose spot price comes from the market-data source.
func QuotedAssets() []model.Asset {
	return []model.Asset{model.BTC, model.ETH, model.SOL, model.USDC}
}

// FiatCode returns the lower-case currency code the source expects for a fiat asset.
func FiatCode(a model.Asset) string {
	return strings.ToLower(string(a))
}
