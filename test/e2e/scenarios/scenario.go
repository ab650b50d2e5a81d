// Package scenarios holds the end-to-end scenarios run against a live
// LocalFlow server.
package scenarios

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Scenario is one end-to-end check.
type Scenario interface {
	// Name identifies the scenario on the command line and in reports.
	Name() string

	// Description says what the scenario covers.
	Description() string

	// Setup prepares clients and server state before Execute.
	Setup(ctx context.Context) error

	// Execute runs the scenario. A failed check is reported in the Result;
	// the error return is reserved for the harness itself breaking.
	Execute(ctx context.Context) (*Result, error)

	// Teardown releases clients and leaves the server without an itinerary.
	Teardown(ctx context.Context) error
}

// Result contains the outcome of a scenario execution.
// All methods are safe for concurrent use.
type Result struct {
	mu sync.Mutex `json:"-"`

	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metrics  map[string]any `json:"metrics,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Stages   []StageResult  `json:"stages,omitempty"`
}

// StageResult represents the outcome of a single stage in a scenario.
type StageResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewResult creates a new Result initialized for the given scenario.
func NewResult(scenarioName string) *Result {
	return &Result{
		ScenarioName: scenarioName,
		StartTime:    time.Now(),
		Metrics:      make(map[string]any),
		Details:      make(map[string]any),
		Errors:       []string{},
		Warnings:     []string{},
		Stages:       []StageResult{},
	}
}

// Complete marks the result as complete, setting end time and duration.
func (r *Result) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// AddError adds an error to the result.
func (r *Result) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

// AddWarning adds a warning to the result.
func (r *Result) AddWarning(warning string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, warning)
}

// AddStage records a completed stage.
func (r *Result) AddStage(name string, success bool, duration time.Duration, err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, StageResult{
		Name:     name,
		Success:  success,
		Duration: duration,
		Error:    err,
	})
}

// SetMetric sets a metric value.
func (r *Result) SetMetric(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Metrics[key] = value
}

// SetDetail sets a detail value.
func (r *Result) SetDetail(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Details[key] = value
}

// GetDetail retrieves a detail value safely.
func (r *Result) GetDetail(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	val, ok := r.Details[key]
	return val, ok
}

// stage is one named step of a scenario.
type stage struct {
	name string
	fn   func(ctx context.Context, result *Result) error
}

// runStages executes stages in order with a per-stage timeout and stops at
// the first failure. The result is completed either way.
func runStages(ctx context.Context, result *Result, timeout time.Duration, stages []stage) *Result {
	defer result.Complete()

	for _, s := range stages {
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := s.fn(stageCtx, result)
		cancel()

		if err != nil {
			result.AddStage(s.name, false, time.Since(start), err.Error())
			result.Error = fmt.Sprintf("%s: %v", s.name, err)
			result.AddError(result.Error)
			return result
		}
		result.AddStage(s.name, true, time.Since(start), "")
	}
	result.Success = true
	return result
}
