// Package health provides liveness and readiness checks for the daemon.
package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/codemusic/safetyscribe/internal/log"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one component's verdict.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is a named component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager aggregates registered checkers.
type Manager struct {
	version  string
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Health is the liveness probe: the process being able to answer is the
// signal. Component checks are included only when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready is the readiness probe: any unhealthy component makes the device
// not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.runChecks(ctx)
	if resp.Status == StatusUnhealthy {
		resp.Ready = false
	}
	return resp
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	checks := make(map[string]CheckResult, len(m.checkers))
	status := StatusHealthy
	for _, c := range m.checkers {
		result := c.Check(ctx)
		checks[c.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return checks, status
}

// ServeHealth handles HTTP liveness requests. Always 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness requests. 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("health")

	resp := m.Ready(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("failed to encode readiness response")
	}
}

// BinaryChecker verifies an audio tool is on PATH.
type BinaryChecker struct {
	name   string
	binary string
}

func NewBinaryChecker(name, binary string) *BinaryChecker {
	return &BinaryChecker{name: name, binary: binary}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "binary not found", Message: c.binary}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// DirChecker verifies the recordings directory exists and is writable.
type DirChecker struct {
	name string
	dir  string
}

func NewDirChecker(name, dir string) *DirChecker {
	return &DirChecker{name: name, dir: dir}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.dir}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: c.dir}
	}
	probe, err := os.CreateTemp(c.dir, ".probe_*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "not writable", Message: c.dir}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return CheckResult{Status: StatusHealthy, Message: c.dir}
}

// EndpointChecker probes TCP reachability of the processing endpoint host.
// Unreachable is degraded, not unhealthy: the device keeps serving its
// local surface while offline.
type EndpointChecker struct {
	addr    string
	timeout time.Duration
}

func NewEndpointChecker(host, port string) *EndpointChecker {
	return &EndpointChecker{addr: net.JoinHostPort(host, port), timeout: 2 * time.Second}
}

func (c *EndpointChecker) Name() string { return "endpoint" }

func (c *EndpointChecker) Check(ctx context.Context) CheckResult {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: c.addr}
	}
	_ = conn.Close()
	return CheckResult{Status: StatusHealthy, Message: c.addr}
}

// SessionChecker reports the orchestrator's current phase. Connecting is
// degraded; shutdown is unhealthy; everything else is healthy.
type SessionChecker struct {
	state func() string
}

func NewSessionChecker(state func() string) *SessionChecker {
	return &SessionChecker{state: state}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(_ context.Context) CheckResult {
	st := c.state()
	switch st {
	case "booting", "connecting":
		return CheckResult{Status: StatusDegraded, Message: st}
	case "shutting_down":
		return CheckResult{Status: StatusUnhealthy, Message: st}
	default:
		return CheckResult{Status: StatusHealthy, Message: st}
	}
}
