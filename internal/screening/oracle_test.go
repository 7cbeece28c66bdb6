package screening

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/platform/sentinel"
)

func testAddr(t *testing.T) canonical.Address {
	t.Helper()
	addr, err := canonical.NewAddress(canonical.ChainEthereum, "0x7F367cc41522cE07553e823bf3be79A889DEbe1B")
	require.NoError(t, err)
	return addr
}

func TestHTTPOracleParsesSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/risk/ETH/0x7f367cc41522ce07553e823bf3be79a889debe1b", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vendor":"trmlike","score":85,"category":"mixer"}`))
	}))
	defer server.Close()

	oracle := NewHTTPOracle(server.URL, "secret")
	signal, err := oracle.Query(context.Background(), testAddr(t))
	require.NoError(t, err)
	assert.Equal(t, RiskSignal{Vendor: "trmlike", Score: 85, Category: "mixer"}, signal)
}

func TestHTTPOracleNotFoundMeansNoSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	oracle := NewHTTPOracle(server.URL, "")
	_, err := oracle.Query(context.Background(), testAddr(t))
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestHTTPOracleServerErrorIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	oracle := NewHTTPOracle(server.URL, "")
	_, err := oracle.Query(context.Background(), testAddr(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSignal)
}

type slowOracle struct{ delay time.Duration }

func (o *slowOracle) Query(ctx context.Context, _ canonical.Address) (RiskSignal, error) {
	select {
	case <-ctx.Done():
		return RiskSignal{}, ctx.Err()
	case <-time.After(o.delay):
		return RiskSignal{Vendor: "slow", Score: 90}, nil
	}
}

func TestTimeoutOracleDegradesOnSlowVendor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	oracle := NewTimeoutOracle(&slowOracle{delay: time.Second}, 10*time.Millisecond, logger)

	_, err := oracle.Query(context.Background(), testAddr(t))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestTimeoutOraclePassesThroughNoSignal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &fakeOracle{signals: map[string]RiskSignal{}}
	oracle := NewTimeoutOracle(inner, time.Second, logger)

	_, err := oracle.Query(context.Background(), testAddr(t))
	assert.ErrorIs(t, err, ErrNoSignal)
}

func TestTimeoutOracleWrapsVendorErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := &fakeOracle{err: errors.New("connection refused")}
	oracle := NewTimeoutOracle(inner, time.Second, logger)

	_, err := oracle.Query(context.Background(), testAddr(t))
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
