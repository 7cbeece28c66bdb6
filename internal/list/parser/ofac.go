package parser

import (
	"context"
	"encoding/xml"
	"strings"
)

const (
	ofacParserVersion = "ofac-sdn/1"

	// OFAC encodes crypto addresses as identity documents whose type is
	// "Digital Currency Address - <TICKER>".
	digitalCurrencyPrefix = "Digital Currency Address - "
)

// OFACSDN parses the OFAC SDN XML feed. The UK and UN consolidated feeds we
// accept are published in the same schema, so a single parser covers all
// three configured sources.
type OFACSDN struct{}

func NewOFACSDN() *OFACSDN { return &OFACSDN{} }

func (p *OFACSDN) Version() string { return ofacParserVersion }

type sdnList struct {
	Entries []sdnEntry `xml:"sdnEntry"`
}

type sdnEntry struct {
	UID       string   `xml:"uid"`
	FirstName string   `xml:"firstName"`
	LastName  string   `xml:"lastName"`
	Programs  []string `xml:"programList>program"`
	IDs       []sdnID  `xml:"idList>id"`
}

type sdnID struct {
	IDType   string `xml:"idType"`
	IDNumber string `xml:"idNumber"`
}

func (p *OFACSDN) Parse(ctx context.Context, raw []byte) ([]Record, error) {
	var list sdnList
	if err := xml.Unmarshal(raw, &list); err != nil {
		return nil, &ParseError{Parser: p.Version(), Cause: err}
	}

	var records []Record
	for _, entry := range list.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entityName(entry)
		program := strings.Join(entry.Programs, "; ")
		for _, id := range entry.IDs {
			ticker, ok := digitalCurrencyTicker(id.IDType)
			if !ok {
				continue
			}
			address := strings.TrimSpace(id.IDNumber)
			if address == "" {
				continue
			}
			records = append(records, Record{
				EntityUID:  entry.UID,
				EntityName: name,
				Program:    program,
				Ticker:     ticker,
				Address:    address,
			})
		}
	}
	return records, nil
}

func entityName(entry sdnEntry) string {
	first := strings.TrimSpace(entry.FirstName)
	last := strings.TrimSpace(entry.LastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

func digitalCurrencyTicker(idType string) (string, bool) {
	if !strings.HasPrefix(idType, digitalCurrencyPrefix) {
		return "", false
	}
	ticker := strings.TrimSpace(strings.TrimPrefix(idType, digitalCurrencyPrefix))
	if ticker == "" {
		return "", false
	}
	return ticker, true
}
