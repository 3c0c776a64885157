package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// knownSymbols are the asset legs that appear in pool identifiers like
// "USDCETH500". What remains after stripping them is the fee tier.
var knownSymbols = []string{"ETH", "USDC", "USDT", "DAI"}

// stableDecimals maps the stable leg of a pool to its token decimals, used
// to turn raw amount0 values into USD volume.
var stableDecimals = map[string]int{
	"USDC": 6,
	"USDT": 6,
	"DAI":  18,
}

// FeeTierOf extracts the fee-tier identifier from a pool id.
func FeeTierOf(pool string) (int, error) {
	s := pool
	for _, sym := range knownSymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	tier, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("no fee tier in pool id %q", pool)
	}
	return tier, nil
}

// stableOf returns the stable leg a pool id is quoted in, defaulting to DAI
// like the source data convention.
func stableOf(pool string) string {
	if strings.HasPrefix(pool, "USDC") {
		return "USDC"
	}
	if strings.HasPrefix(pool, "USDT") {
		return "USDT"
	}
	return "DAI"
}
