package model

import (
	"fmt"
	"strings"
)

// Asset is one of the fixed set of symbols the bridge quotes against the fiat reference.
type Asset string

const (
	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
	SOL  Asset = "SOL"
	USDC Asset = "USDC"
	ZAR  Asset = "ZAR"
	CURR Asset = "CURR"
)

// Fiat is the reference currency every price is expressed in.
const Fiat = ZAR

// Assets lists every enumerated symbol in display order.
var Assets = []Asset{CURR, ETH, BTC, SOL, USDC, ZAR}

// ParseAsset maps a case-insensitive symbol to an Asset.
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Assets {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown asset %q", s)
}

// HasMarket reports whether the asset trades independently and so has a history worth fetching.
// The fiat reference and the protocol token do not.
func (a Asset) HasMarket() bool {
	return a != ZAR && a != CURR
}

func (a Asset) String() string { return string(a) }
