package screening

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"chainscreen/internal/canonical"
)

// HTTPOracle queries a vendor risk API over HTTPS. A 404 means the vendor has
// no assessment; any other non-200 is a vendor failure. Wrap it in a
// TimeoutOracle so a slow vendor degrades the engine instead of stalling it.
type HTTPOracle struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPOracle(baseURL, apiKey string) *HTTPOracle {
	return &HTTPOracle{
		client:  &http.Client{},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type oracleResponse struct {
	Vendor   string `json:"vendor"`
	Score    int    `json:"score"`
	Category string `json:"category"`
}

func (o *HTTPOracle) Query(ctx context.Context, addr canonical.Address) (RiskSignal, error) {
	endpoint := fmt.Sprintf("%s/v1/risk/%s/%s", o.baseURL, url.PathEscape(string(addr.Chain)), url.PathEscape(addr.Canonical))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RiskSignal{}, fmt.Errorf("build oracle request: %w", err)
	}
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return RiskSignal{}, fmt.Errorf("query vendor oracle: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return RiskSignal{}, ErrNoSignal
	default:
		return RiskSignal{}, fmt.Errorf("vendor oracle status %d", resp.StatusCode)
	}

	var body oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RiskSignal{}, fmt.Errorf("decode oracle response: %w", err)
	}
	return RiskSignal{Vendor: body.Vendor, Score: body.Score, Category: body.Category}, nil
}
