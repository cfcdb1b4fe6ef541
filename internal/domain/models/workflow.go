package models

import "time"

// Phase is the lifecycle position of the current run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseRunning    Phase = "running"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transition happens without a new run.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// WorkflowState is the single visible state of the controller. Result is set
// only when Succeeded, Failure only when Failed.
type WorkflowState struct {
	Phase      Phase      `json:"phase"`
	RunID      string     `json:"run_id,omitempty"`
	Variant    Variant    `json:"variant,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	Result     *RunResult `json:"result,omitempty"`
	Failure    *Failure   `json:"failure,omitempty"`
}

// MACDParams are the optimised indicator periods reported by the service.
type MACDParams struct {
	Fast   int `json:"fastperiod"`
	Slow   int `json:"slowperiod"`
	Signal int `json:"signalperiod"`
}

// StrategySummary describes the strategy leg of a successful run.
type StrategySummary struct {
	Tickers        []string    `json:"tickers"`
	Initial        float64     `json:"initial"`
	Final          Balance     `json:"final"`
	TotalReturnPct *float64    `json:"total_return_pct,omitempty"`
	Params         *MACDParams `json:"params,omitempty"`
	Report         string      `json:"report,omitempty"`
}

// BenchmarkSummary describes the benchmark leg. Degraded is set when the
// benchmark call failed and the leg was drawn flat at initial capital.
type BenchmarkSummary struct {
	Final    Balance `json:"final"`
	Degraded bool    `json:"degraded,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// RunResult is the payload of a Succeeded state. Series is empty for
// screen-only runs.
type RunResult struct {
	Series    AlignedSeries    `json:"series"`
	Strategy  StrategySummary  `json:"strategy"`
	Benchmark BenchmarkSummary `json:"benchmark"`
	Selected  []SelectedStock  `json:"selected,omitempty"`
}

// Snapshot is what subscribers observe: the state plus the carried
// screening selection.
type Snapshot struct {
	State     WorkflowState   `json:"state"`
	Selection []SelectedStock `json:"selection,omitempty"`
}
