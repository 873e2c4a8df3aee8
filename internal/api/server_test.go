package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemusic/safetyscribe/internal/health"
	"github.com/codemusic/safetyscribe/internal/journal"
	"github.com/codemusic/safetyscribe/internal/session"
)

// The badger store is what the daemon wires in.
var _ JournalReader = (*journal.Store)(nil)

type fakeJournal struct {
	entries []journal.Entry
	err     error
	lastN   int
}

func (f *fakeJournal) Recent(_ context.Context, n int) ([]journal.Entry, error) {
	f.lastN = n
	return f.entries, f.err
}

func newTestServer(jr JournalReader) *Server {
	mgr := health.NewManager("test")
	return NewServer(Options{Listen: "127.0.0.1:0", Version: "test"}, mgr,
		func() string { return "ready" }, func() *session.InstructionSummary { return nil }, jr)
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.State)
	assert.Equal(t, "test", resp.Version)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.Nil(t, resp.LastInstruction)
}

func TestStatusEndpointCarriesLastInstruction(t *testing.T) {
	mgr := health.NewManager("test")
	last := &session.InstructionSummary{LEDPattern: "white", HasAudio: true, ReceivedAt: time.Now()}
	srv := NewServer(Options{Listen: "127.0.0.1:0", Version: "test"}, mgr,
		func() string { return "playing" }, func() *session.InstructionSummary { return last }, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	require.Equal(t, 200, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastInstruction)
	assert.Equal(t, "white", resp.LastInstruction.LEDPattern)
	assert.True(t, resp.LastInstruction.HasAudio)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(nil)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestJournalEndpoint(t *testing.T) {
	jr := &fakeJournal{entries: []journal.Entry{
		{ID: "a", Path: "/data/recs/rec_1.wav", Bytes: 1234, Outcome: journal.OutcomeUploaded, FinishedAt: time.Now()},
	}}
	srv := newTestServer(jr)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/journal?n=5", nil))
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, 5, jr.lastN)

	var got []journal.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestJournalEndpointValidatesN(t *testing.T) {
	srv := newTestServer(&fakeJournal{})
	for _, q := range []string{"n=0", "n=501", "n=abc"} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/journal?"+q, nil))
		assert.Equal(t, 400, rec.Code, q)
	}
}

func TestJournalEndpointDisabled(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/journal", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestJournalEndpointReadError(t *testing.T) {
	srv := newTestServer(&fakeJournal{err: errors.New("disk gone")})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/journal", nil))
	assert.Equal(t, 500, rec.Code)
}
