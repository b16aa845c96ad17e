// Package market provides supported assets, Indian market hours and price/candle sources.
package market

import (
	"slices"
	"strings"

	"github.com/quantnest/executor/pkg/models"
)

var (
	SupportedIndianAssets = []string{"CDSL", "HDFC", "TCS", "INFY", "RELIANCE"}
	SupportedCryptoAssets = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "DOGE"}

	nseSymbols = map[string]string{
		"HDFC": "HDFCBANK",
	}
)

// IsSupported reports whether symbol is tradable in the given market.
func IsSupported(market models.MarketType, symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	switch market {
	case models.MarketCrypto:
		return slices.Contains(SupportedCryptoAssets, symbol)
	default:
		return slices.Contains(SupportedIndianAssets, symbol)
	}
}

// NSESymbol maps a workflow symbol to its NSE listing.
func NSESymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if mapped, ok := nseSymbols[symbol]; ok {
		return mapped
	}

	return symbol
}

// BinancePair maps a crypto symbol to its USDT pair.
func BinancePair(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(symbol, "USDT") {
		return symbol
	}

	return symbol + "USDT"
}
