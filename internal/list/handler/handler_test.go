package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscreen/internal/list"
	"chainscreen/internal/list/parser"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/platform/sentinel"
	"chainscreen/pkg/requestcontext"
)

type fakeParser struct {
	records []parser.Record
	err     error
}

func (f *fakeParser) Parse(context.Context, []byte) ([]parser.Record, error) {
	return f.records, f.err
}

func (f *fakeParser) Version() string { return "fake-parser-1" }

type fakeService struct {
	version *list.ListVersion
	result  *list.ValidationResult
	history []*list.ListVersion
	err     error

	lastChecksum string
	lastActor    string
	lastPayload  []byte
}

func (f *fakeService) Ingest(_ context.Context, _ list.Source, payload []byte, _, declaredChecksum, _ string) (*list.ListVersion, error) {
	f.lastPayload, f.lastChecksum = payload, declaredChecksum
	return f.version, f.err
}

func (f *fakeService) Validate(context.Context, domain.VersionID, []parser.Record) (*list.ValidationResult, error) {
	return f.result, f.err
}

func (f *fakeService) Promote(_ context.Context, _ domain.VersionID, promotedBy string) (*list.ListVersion, error) {
	f.lastActor = promotedBy
	return f.version, f.err
}

func (f *fakeService) Rollback(_ context.Context, _ list.Source, actor string) (*list.ListVersion, error) {
	f.lastActor = actor
	return f.version, f.err
}

func (f *fakeService) Version(context.Context, domain.VersionID) (*list.ListVersion, error) {
	return f.version, f.err
}

func (f *fakeService) History(context.Context, list.Source) ([]*list.ListVersion, error) {
	return f.history, f.err
}

func newRouter(svc Service, p parser.Parser) http.Handler {
	r := chi.NewRouter()
	parsers := map[list.Source]parser.Parser{list.SourceOFACSDN: p}
	New(svc, parsers, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func sampleVersion() *list.ListVersion {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &list.ListVersion{
		ID:            domain.NewVersionID(),
		Source:        list.SourceOFACSDN,
		Format:        "xml",
		ContentHash:   strings.Repeat("ab", 32),
		ParserVersion: "fake-parser-1",
		RecordCount:   1,
		AddressCount:  1,
		Status:        list.StatusValidated,
		RetrievedAt:   now,
		CreatedAt:     now,
	}
}

func asOperator(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

func TestHandleIngestHappyPath(t *testing.T) {
	v := sampleVersion()
	svc := &fakeService{
		version: v,
		result:  &list.ValidationResult{VersionID: v.ID, RecordCount: 1, AddressCount: 1, Deduplicated: 2},
	}
	p := &fakeParser{records: []parser.Record{{
		EntityUID:  "30518",
		EntityName: "TORNADO CASH",
		Ticker:     "ETH",
		Address:    "0x7F367cc41522cE07553e823bf3be79A889DEbe1B",
	}}}
	router := newRouter(svc, p)

	payload := base64.StdEncoding.EncodeToString([]byte("<Sanctions/>"))
	body := `{"payload":"` + payload + `","checksum":"ABCDEF"}`
	req := httptest.NewRequest(http.MethodPost, "/lists/OFAC_SDN/ingest", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "ops"))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []byte("<Sanctions/>"), svc.lastPayload)
	assert.Equal(t, "abcdef", svc.lastChecksum)

	var resp IngestResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "validated", resp.Version.Status)
	assert.Equal(t, 2, resp.Deduplicated)
}

func TestHandleIngestRejectsBadPayload(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown source", "/lists/NOT_A_LIST/ingest", `{"payload":"aGk="}`},
		{"missing payload", "/lists/OFAC_SDN/ingest", `{}`},
		{"not base64", "/lists/OFAC_SDN/ingest", `{"payload":"%%%"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&fakeService{}, &fakeParser{})
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, asOperator(req, "ops"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleIngestUnparsablePayload(t *testing.T) {
	svc := &fakeService{version: sampleVersion()}
	p := &fakeParser{err: &parser.ParseError{Parser: "fake-parser-1"}}
	router := newRouter(svc, p)

	payload := base64.StdEncoding.EncodeToString([]byte("not xml at all"))
	req := httptest.NewRequest(http.MethodPost, "/lists/OFAC_SDN/ingest", strings.NewReader(`{"payload":"`+payload+`"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "ops"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePromoteRecordsActor(t *testing.T) {
	v := sampleVersion()
	svc := &fakeService{version: v}
	router := newRouter(svc, &fakeParser{})

	req := httptest.NewRequest(http.MethodPost, "/lists/versions/"+v.ID.String()+"/promote", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "compliance-lead"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "compliance-lead", svc.lastActor)
}

func TestHandlePromoteFailedValidationIsConflict(t *testing.T) {
	v := sampleVersion()
	svc := &fakeService{err: &list.ValidationError{
		Rule:   "record_count_drop",
		Detail: "record count dropped too far",
	}}
	router := newRouter(svc, &fakeParser{})

	req := httptest.NewRequest(http.MethodPost, "/lists/versions/"+v.ID.String()+"/promote", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "ops"))

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "invalid_state", resp["error"])
}

func TestHandleRollback(t *testing.T) {
	svc := &fakeService{version: sampleVersion()}
	router := newRouter(svc, &fakeParser{})

	req := httptest.NewRequest(http.MethodPost, "/lists/OFAC_SDN/rollback", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "ops"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", svc.lastActor)

	svc.err = sentinel.ErrInvalidState
	req = httptest.NewRequest(http.MethodPost, "/lists/OFAC_SDN/rollback", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, asOperator(req, "ops"))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleVersionNotFound(t *testing.T) {
	router := newRouter(&fakeService{err: sentinel.ErrNotFound}, &fakeParser{})

	req := httptest.NewRequest(http.MethodGet, "/lists/versions/"+domain.NewVersionID().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/lists/versions/garbage", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	svc := &fakeService{history: []*list.ListVersion{sampleVersion(), sampleVersion()}}
	router := newRouter(svc, &fakeParser{})

	req := httptest.NewRequest(http.MethodGet, "/lists/OFAC_SDN/versions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Versions, 2)
}
