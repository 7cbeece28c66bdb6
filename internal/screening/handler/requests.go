package handler

import (
	"strings"

	"chainscreen/internal/canonical"
	dErrors "chainscreen/pkg/domain-errors"
)

// ScreenRequest is the HTTP request body for POST /screen. Exactly one of
// chain or ticker selects how the address is resolved.
type ScreenRequest struct {
	Chain   string `json:"chain,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
	Address string `json:"address"`

	parsedChain canonical.Chain
}

func (r *ScreenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeBadRequest, "address is required")
	}
	if len(r.Address) > 128 {
		return dErrors.New(dErrors.CodeBadRequest, "address must be at most 128 characters")
	}

	r.Chain = strings.TrimSpace(r.Chain)
	r.Ticker = strings.TrimSpace(r.Ticker)
	switch {
	case r.Chain == "" && r.Ticker == "":
		return dErrors.New(dErrors.CodeBadRequest, "one of chain or ticker is required")
	case r.Chain != "" && r.Ticker != "":
		return dErrors.New(dErrors.CodeBadRequest, "chain and ticker are mutually exclusive")
	case r.Chain != "":
		chain, ok := canonical.ParseChain(r.Chain)
		if !ok {
			return dErrors.New(dErrors.CodeBadRequest, "unknown chain")
		}
		r.parsedChain = chain
	}
	return nil
}

// ParsedChain returns the validated chain for chain-form requests.
func (r *ScreenRequest) ParsedChain() canonical.Chain { return r.parsedChain }
