package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string                      { return c.name }
func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestHealthAlwaysAlive(t *testing.T) {
	m := NewManager("1.2.3")
	m.RegisterChecker(staticChecker{"broken", CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code, "liveness never fails on component state")

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Empty(t, resp.Checks, "checks only included when verbose")
}

func TestHealthVerboseIncludesChecks(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(staticChecker{"session", CheckResult{Status: StatusDegraded, Message: "connecting"}})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Contains(t, resp.Checks, "session")
}

func TestReadyFailsOnUnhealthyComponent(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(staticChecker{"recorder", CheckResult{Status: StatusUnhealthy, Error: "binary not found"}})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestReadyDegradedIsStillReady(t *testing.T) {
	m := NewManager("dev")
	m.RegisterChecker(staticChecker{"endpoint", CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestDirChecker(t *testing.T) {
	ok := NewDirChecker("recs", t.TempDir()).Check(context.Background())
	assert.Equal(t, StatusHealthy, ok.Status)

	missing := NewDirChecker("recs", "/does/not/exist").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, missing.Status)
}

func TestSessionChecker(t *testing.T) {
	state := "connecting"
	c := NewSessionChecker(func() string { return state })

	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
	state = "ready"
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
	state = "shutting_down"
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}
