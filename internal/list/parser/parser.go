// Package parser turns raw sanctions list payloads into address records.
package parser

import (
	"context"
	"fmt"
)

// Record is one digital-currency address extracted from a list payload,
// before canonicalization. Ticker carries the authority's currency code.
type Record struct {
	EntityUID  string
	EntityName string
	Program    string
	Ticker     string
	Address    string
}

// Parser extracts address records from one payload format.
type Parser interface {
	// Parse extracts every digital-currency address record from raw.
	// A payload with zero address records is not an error.
	Parse(ctx context.Context, raw []byte) ([]Record, error)

	// Version identifies the parser implementation for provenance.
	Version() string
}

// ParseError marks a structurally unreadable payload.
type ParseError struct {
	Parser string
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Parser, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
