// Package canonical normalizes blockchain addresses per chain-specific rules.
// Everything here is pure: no I/O, no shared state, safe for unrestricted
// parallel use. The canonical form is the only lookup key the screening index
// ever sees, so these rules are the single defense against false negatives
// from inconsistent formatting.
package canonical

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	evmRe       = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	btcBech32Re = regexp.MustCompile(`^(bc1|tb1|bcrt1)[a-z0-9]{20,90}$`)
	ltcBech32Re = regexp.MustCompile(`^ltc1[a-z0-9]{20,90}$`)
	btcBase58Re = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	ltcBase58Re = regexp.MustCompile(`^[LM3][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	tronRe      = regexp.MustCompile(`^T[a-km-zA-HJ-NP-Z1-9]{33}$`)
	moneroRe    = regexp.MustCompile(`^[48][a-km-zA-HJ-NP-Z1-9]{94}$`)
)

// ErrInvalidAddressFormat marks input that fails the chain's syntactic
// grammar. Screening treats it as a non-hit, never as a sanctions match.
var ErrInvalidAddressFormat = errors.New("invalid address format")

// InvalidAddressError carries the chain and raw input for log context.
type InvalidAddressError struct {
	Chain Chain
	Raw   string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address format for chain %s", e.Chain)
}

func (e *InvalidAddressError) Is(target error) bool { return target == ErrInvalidAddressFormat }

// Canonicalize derives the canonical string form of raw on the given chain.
//
// Rules:
//   - EVM chains: 0x + 40 hex digits, lowercased.
//   - Bitcoin/Litecoin bech32 (bc1/tb1/bcrt1, ltc1): case-insensitive, lowercased.
//   - Bitcoin/Litecoin base58: case-sensitive, kept verbatim.
//   - Tron (T..., 34 chars) and Monero (4/8..., 95 chars): case-sensitive, verbatim.
//   - Chains with no published grammar, and unregistered chains: trimmed only.
//
// Leading and trailing whitespace is always stripped before matching.
func Canonicalize(chain Chain, raw string) (string, error) {
	a := strings.TrimSpace(raw)

	switch {
	case chain.IsEVM():
		if !evmRe.MatchString(a) {
			return "", &InvalidAddressError{Chain: chain, Raw: raw}
		}
		return strings.ToLower(a), nil

	case chain == ChainBitcoin:
		if low := strings.ToLower(a); btcBech32Re.MatchString(low) {
			return low, nil
		}
		if btcBase58Re.MatchString(a) {
			return a, nil
		}
		return "", &InvalidAddressError{Chain: chain, Raw: raw}

	case chain == ChainLitecoin:
		if low := strings.ToLower(a); ltcBech32Re.MatchString(low) {
			return low, nil
		}
		if ltcBase58Re.MatchString(a) {
			return a, nil
		}
		return "", &InvalidAddressError{Chain: chain, Raw: raw}

	case chain == ChainTron:
		if !tronRe.MatchString(a) {
			return "", &InvalidAddressError{Chain: chain, Raw: raw}
		}
		return a, nil

	case chain == ChainMonero:
		if !moneroRe.MatchString(a) {
			return "", &InvalidAddressError{Chain: chain, Raw: raw}
		}
		return a, nil

	default:
		// Registered chains without a grammar, and unknown chains: stay
		// conservative and do not falsely reject.
		return a, nil
	}
}

// Address is the value object pairing a chain with the raw and canonical forms
// of an address. Construct it through NewAddress only; Canonical is always
// derived, never hand-set.
type Address struct {
	Chain     Chain
	Raw       string
	Canonical string
}

// NewAddress canonicalizes raw on the given chain.
func NewAddress(chain Chain, raw string) (Address, error) {
	canonical, err := Canonicalize(chain, raw)
	if err != nil {
		return Address{}, err
	}
	return Address{Chain: chain, Raw: strings.TrimSpace(raw), Canonical: canonical}, nil
}

// Equal reports whether two addresses identify the same entity. Addresses on
// different chains are never equal, even with byte-identical canonical forms.
func (a Address) Equal(b Address) bool {
	return a.Chain == b.Chain && a.Canonical == b.Canonical
}

// ExpandCandidates resolves a ticker plus raw address into candidate
// addresses, one per plausible chain. For single-chain tickers this is plain
// canonicalization. For multi-chain tokens the raw string's syntactic shape
// selects the chains: an EVM-shaped address yields every EVM candidate, a
// Tron-shaped one yields Tron. All candidates get indexed; a hit on any
// candidate is a full hit.
func ExpandCandidates(ticker, raw string) ([]Address, error) {
	chains, err := ChainsForTicker(ticker)
	if err != nil {
		return nil, err
	}

	if len(chains) == 1 {
		addr, err := NewAddress(chains[0], raw)
		if err != nil {
			return nil, err
		}
		return []Address{addr}, nil
	}

	var candidates []Address
	for _, chain := range chains {
		addr, err := NewAddress(chain, raw)
		if err != nil {
			continue
		}
		candidates = append(candidates, addr)
	}
	if len(candidates) == 0 {
		return nil, &InvalidAddressError{Chain: ChainUnknown, Raw: raw}
	}
	return candidates, nil
}
