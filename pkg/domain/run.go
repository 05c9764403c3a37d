package domain

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// StepRecord captures one prompt invocation inside a run.
type StepRecord struct {
	Prompt string         `json:"prompt"`
	Visit  int            `json:"visit"`
	Text   string         `json:"text"`
	Score  float64        `json:"score"`
	Data   map[string]any `json:"data,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
	Next   string         `json:"next"`
}

// RunRecord is the persisted trace of one program run.
type RunRecord struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id,omitempty"`
	Cog      string         `json:"cog"`
	Entry    string         `json:"entry"`
	Inputs   map[string]any `json:"inputs,omitempty"`
	Steps    []StepRecord   `json:"steps"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Status   RunStatus      `json:"status"`
	Error    string         `json:"error,omitempty"`
	Started  time.Time      `json:"started"`
	Updated  time.Time      `json:"updated"`
}

// NewRunRecord creates a running record.
func NewRunRecord(id, cog, entry string, inputs map[string]any) *RunRecord {
	now := time.Now()
	return &RunRecord{
		ID:      id,
		Cog:     cog,
		Entry:   entry,
		Inputs:  inputs,
		Steps:   []StepRecord{},
		Status:  RunRunning,
		Started: now,
		Updated: now,
	}
}

// Job is one cog invocation requested from an orchestrator.
type Job struct {
	Cog    string         `json:"cog"`
	Entry  string         `json:"entry,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

// RestoreIntegers converts the integral float64 values left by JSON decoding
// back to int, in inputs, outputs and step data.
func (r *RunRecord) RestoreIntegers() {
	restoreMap(r.Inputs)
	restoreMap(r.Outputs)
	for i := range r.Steps {
		restoreMap(r.Steps[i].Data)
	}
}

// RestoreIntegerValues applies the same conversion to a decoded JSON object.
func RestoreIntegerValues(m map[string]any) { restoreMap(m) }

func restoreMap(m map[string]any) {
	for k, v := range m {
		m[k] = restoreValue(v)
	}
}

func restoreValue(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int(t)
		}
	case []any:
		for i := range t {
			t[i] = restoreValue(t[i])
		}
	case map[string]any:
		restoreMap(t)
	}
	return v
}
