// Package ingest fetches sanctions list publications on a schedule and drives
// them through the list lifecycle. A feed that fails any step stays on its
// previous active version; the next cycle retries from scratch.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payload is one fetched publication. Checksum is the publisher-declared
// digest when the feed provides one, empty otherwise.
type Payload struct {
	Body        []byte
	Checksum    string
	RetrievedAt time.Time
}

// RetrievalError wraps a fetch failure with the feed URL for operator logs.
type RetrievalError struct {
	URL   string
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s: %v", e.URL, e.Cause)
}

func (e *RetrievalError) Unwrap() error { return e.Cause }

// Retriever fetches a list publication from its upstream.
type Retriever interface {
	Fetch(ctx context.Context, url string) (*Payload, error)
}

// HTTPRetriever fetches publications over HTTPS. The response size cap guards
// against a misbehaving upstream; real SDN publications are tens of
// megabytes.
type HTTPRetriever struct {
	client  *http.Client
	maxBody int64
}

const defaultMaxBody = 256 << 20

func NewHTTPRetriever(timeout time.Duration) *HTTPRetriever {
	return &HTTPRetriever{
		client:  &http.Client{Timeout: timeout},
		maxBody: defaultMaxBody,
	}
}

func (r *HTTPRetriever) Fetch(ctx context.Context, url string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RetrievalError{URL: url, Cause: err}
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &RetrievalError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RetrievalError{URL: url, Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody))
	if err != nil {
		return nil, &RetrievalError{URL: url, Cause: fmt.Errorf("read body: %w", err)}
	}

	return &Payload{
		// Publishers expose digests out of band, if at all; the list service
		// computes its own content hash either way.
		Body:        body,
		Checksum:    resp.Header.Get("X-Content-Checksum"),
		RetrievedAt: time.Now().UTC(),
	}, nil
}
