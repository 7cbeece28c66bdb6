package canonical

import (
	"errors"
	"fmt"
	"strings"
)

// Chain is the closed set of blockchain identifiers the engine screens.
// Extending it is a code change: unknown tags are routed to manual review,
// never silently coerced into a known chain.
type Chain string

const (
	ChainBitcoin         Chain = "BTC"
	ChainEthereum        Chain = "ETH"
	ChainArbitrum        Chain = "ARB"
	ChainOptimism        Chain = "OP"
	ChainPolygon         Chain = "MATIC"
	ChainBSC             Chain = "BSC"
	ChainEthereumClassic Chain = "ETC"
	ChainTron            Chain = "TRX"
	ChainLitecoin        Chain = "LTC"
	ChainMonero          Chain = "XMR"
	ChainZcash           Chain = "ZEC"
	ChainDash            Chain = "DASH"
	ChainBSV             Chain = "BSV"
	ChainBitcoinCash     Chain = "BCH"
	ChainBitcoinGold     Chain = "BTG"
	ChainVerge           Chain = "XVG"

	// ChainUnknown marks an unregistered chain tag. Addresses on it are
	// trimmed only and flagged for manual review by the caller.
	ChainUnknown Chain = ""
)

// evmChains are the chains sharing the Ethereum address format. Identical hex
// on two different EVM chains is still two distinct entities.
var evmChains = map[Chain]bool{
	ChainEthereum:        true,
	ChainArbitrum:        true,
	ChainOptimism:        true,
	ChainPolygon:         true,
	ChainBSC:             true,
	ChainEthereumClassic: true,
}

var registeredChains = map[Chain]bool{
	ChainBitcoin: true, ChainEthereum: true, ChainArbitrum: true,
	ChainOptimism: true, ChainPolygon: true, ChainBSC: true,
	ChainEthereumClassic: true, ChainTron: true, ChainLitecoin: true,
	ChainMonero: true, ChainZcash: true, ChainDash: true,
	ChainBSV: true, ChainBitcoinCash: true, ChainBitcoinGold: true,
	ChainVerge: true,
}

// IsEVM reports whether the chain uses the Ethereum address format.
func (c Chain) IsEVM() bool { return evmChains[c] }

// Registered reports whether the chain is part of the closed set.
func (c Chain) Registered() bool { return registeredChains[c] }

func (c Chain) String() string { return string(c) }

// ParseChain maps a chain tag onto the closed set. Unregistered tags come back
// as ChainUnknown with ok=false so callers can route them to manual review.
func ParseChain(tag string) (Chain, bool) {
	c := Chain(strings.ToUpper(strings.TrimSpace(tag)))
	if registeredChains[c] {
		return c, true
	}
	return ChainUnknown, false
}

// ErrUnmappedTicker marks an OFAC ticker with no chain mapping. Entries
// carrying one are quarantined and logged, never silently dropped or matched.
var ErrUnmappedTicker = errors.New("unmapped ticker")

// UnmappedTickerError carries the offending ticker for log context.
type UnmappedTickerError struct {
	Ticker string
}

func (e *UnmappedTickerError) Error() string {
	return fmt.Sprintf("unmapped ticker %q", e.Ticker)
}

func (e *UnmappedTickerError) Is(target error) bool { return target == ErrUnmappedTicker }

// tickerChains maps tickers as published by OFAC onto candidate chains.
// Multi-chain tokens (USDT) list every plausible chain; the syntactic shape of
// the raw address narrows the set at expansion time.
var tickerChains = map[string][]Chain{
	"XBT":  {ChainBitcoin},
	"BTC":  {ChainBitcoin},
	"ETH":  {ChainEthereum},
	"TRX":  {ChainTron},
	"LTC":  {ChainLitecoin},
	"XMR":  {ChainMonero},
	"ZEC":  {ChainZcash},
	"DASH": {ChainDash},
	"BSV":  {ChainBSV},
	"BCH":  {ChainBitcoinCash},
	"BTG":  {ChainBitcoinGold},
	"ETC":  {ChainEthereumClassic},
	"XVG":  {ChainVerge},
	"USDT": {ChainEthereum, ChainArbitrum, ChainOptimism, ChainPolygon, ChainBSC, ChainTron},
}

// ChainsForTicker resolves an OFAC ticker to its candidate chains.
func ChainsForTicker(ticker string) ([]Chain, error) {
	chains, ok := tickerChains[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return nil, &UnmappedTickerError{Ticker: ticker}
	}
	return chains, nil
}
