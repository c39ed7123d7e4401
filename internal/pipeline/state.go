package pipeline

import (
	"sync"
	"time"

	"ineqpanel/internal/panel"
	"ineqpanel/internal/regression"
	"ineqpanel/internal/worldbank"
	"ineqpanel/pkg/contracts/domain"
)

// RunStatus represents the overall run status
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunState is the state of one pipeline run and the data passed between
// steps. Each output field is set by exactly one step.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     error      `json:"error,omitempty"`

	steps map[string]*StepState
	order []string

	// Request is the acquisition input.
	Request worldbank.Request
	// Raw holds every fetched row; Table only rows with the dependent variable.
	Raw   *domain.Table
	Table *domain.Table
	Panel *panel.Panel
	// Result is the fitted model.
	Result *regression.Result
	// Artifacts lists the files written by the run, in order.
	Artifacts []string
}

// NewRunState creates a pending run for req
func NewRunState(id string, req worldbank.Request) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		steps:     make(map[string]*StepState),
		Request:   req,
	}
}

// Start marks the run as running
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	r.Error = err
}

// GetStatus returns the run status
func (r *RunState) GetStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// GetStep returns the state of a specific Step
func (r *RunState) GetStep(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[stepID]
}

// registerStep adds a pending Step, keeping registration order
func (r *RunState) registerStep(state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.steps[state.ID]; !ok {
		r.order = append(r.order, state.ID)
	}
	r.steps[state.ID] = state
}

// Steps returns the Step states in execution order
func (r *RunState) Steps() []*StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*StepState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.steps[id])
	}
	return out
}

// HasFailures returns true if any Step has failed
func (r *RunState) HasFailures() bool {
	for _, s := range r.Steps() {
		if s.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// AddArtifact records a written file
func (r *RunState) AddArtifact(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append(r.Artifacts, path)
}

// Duration returns the duration of the run
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}
