package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/metrics"
)

// Check results
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a check result as degraded rather than unhealthy.
var ErrDegraded = errors.New("degraded")

// Scope selects which checkers a health endpoint runs.
type Scope string

const (
	ScopeAggregate Scope = "aggregate"
	ScopeLive      Scope = "live"
	ScopeReady     Scope = "ready"
	ScopeStartup   Scope = "startup"
)

var scopeTimeouts = map[Scope]time.Duration{
	ScopeAggregate: 5 * time.Second,
	ScopeLive:      2 * time.Second,
	ScopeReady:     5 * time.Second,
	ScopeStartup:   3 * time.Second,
}

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// CheckResponse is the body of /health/live, /health/ready and /health/startup.
type CheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is one health-checkable component.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

type registration struct {
	name    string
	checker HealthChecker
	scopes  map[Scope]bool
}

// HealthManager runs registered checkers for each scope.
type HealthManager struct {
	mu       sync.RWMutex
	checkers []registration
	version  string
}

// NewHealthManager returns a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{version: version}
}

// RegisterChecker adds checker under name. With no scopes it runs for every
// endpoint; the aggregate /health always runs every checker.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker, scopes ...Scope) {
	reg := registration{name: name, checker: checker}
	if len(scopes) > 0 {
		reg.scopes = make(map[Scope]bool, len(scopes))
		for _, p := range scopes {
			reg.scopes[p] = true
		}
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers = append(hm.checkers, reg)
	sort.SliceStable(hm.checkers, func(i, j int) bool { return hm.checkers[i].name < hm.checkers[j].name })
}

// Check runs the checkers selected by scope and returns per-check results.
func (hm *HealthManager) Check(ctx context.Context, scope Scope) map[string]string {
	hm.mu.RLock()
	regs := append([]registration(nil), hm.checkers...)
	hm.mu.RUnlock()

	checks := make(map[string]string, len(regs))
	for _, reg := range regs {
		if scope != ScopeAggregate && reg.scopes != nil && !reg.scopes[scope] {
			continue
		}
		if ctx.Err() != nil {
			checks[reg.name] = StatusTimeout
			continue
		}
		start := time.Now()
		err := reg.checker.CheckHealth(ctx)
		switch {
		case err == nil:
			checks[reg.name] = StatusHealthy
		case errors.Is(err, ErrDegraded):
			checks[reg.name] = StatusDegraded
		default:
			checks[reg.name] = StatusUnhealthy
		}
		metrics.RecordHealthCheck(reg.name, err == nil, time.Since(start))
	}
	return checks
}

// Overall folds check results into one status.
func Overall(checks map[string]string) string {
	status := StatusHealthy
	for _, result := range checks {
		switch result {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

func (hm *HealthManager) serve(w http.ResponseWriter, r *http.Request, scope Scope) {
	ctx, cancel := context.WithTimeout(r.Context(), scopeTimeouts[scope])
	defer cancel()

	checks := hm.Check(ctx, scope)
	status := Overall(checks)

	if status == StatusUnhealthy {
		envelope := apperrors.NewUnavailableError(string(scope) + " health check failed")
		apperrors.RespondWithEnvelope(w, r, enrichHealthEnvelope(envelope, scope, status, checks))
		return
	}

	var body any
	if scope == ScopeAggregate {
		body = HealthResponse{
			Status:    status,
			Version:   hm.version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		}
	} else {
		body = CheckResponse{Status: status, Timestamp: time.Now().UTC(), Checks: checks}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves /health.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serve(w, r, ScopeAggregate)
}

// LivenessHandler serves /health/live.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serve(w, r, ScopeLive)
}

// ReadinessHandler serves /health/ready.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serve(w, r, ScopeReady)
}

// StartupHandler serves /health/startup.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serve(w, r, ScopeStartup)
}

func enrichHealthEnvelope(envelope *gferrors.ErrorEnvelope, scope Scope, status string, checks map[string]string) *gferrors.ErrorEnvelope {
	details := map[string]interface{}{
		"status": status,
		"scope":  string(scope),
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	if len(failing) > 0 {
		envelope, _ = envelope.WithContext(map[string]interface{}{"unhealthy_checks": failing})
	}
	return envelope
}
