package models

import "strings"

type MarketType string

const (
	MarketIndian MarketType = "Indian"
	MarketCrypto MarketType = "Crypto"
)

// ParseMarketType maps "Crypto" and "web3" (any case) to MarketCrypto; everything else is Indian.
func ParseMarketType(value string) MarketType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "crypto", "web3":
		return MarketCrypto
	default:
		return MarketIndian
	}
}
