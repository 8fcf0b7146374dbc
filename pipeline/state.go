package pipeline

import (
	"encoding/json"
	"time"
)

// Phase values of a pipeline run.
const (
	PhaseRunning   = "running"
	PhaseCompleted = "completed"
	PhaseFailed    = "failed"
)

// StepRecord is the persisted snapshot of one completed step. Records are
// append-only: once in the history they are never mutated.
type StepRecord struct {
	Name      string        `json:"name"`
	Attempt   int           `json:"attempt"`
	SessionID string        `json:"session_id,omitempty"`
	Model     string        `json:"model,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// SubPipelineRecord cross-references a sub-pipeline run from its parent.
// It carries the full sub-state snapshot, so the parent checkpoint remains
// a complete audit trail even when the child's own checkpoint is gone.
type SubPipelineRecord struct {
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	State     *State    `json:"state"`
}

// State is the durable record of one pipeline run. The Runner appends to
// Steps and SubPipelines and maintains Phase; applications are free to set
// Phase and Values between steps, the next checkpoint persists them along
// with everything else.
type State struct {
	Pipeline     string              `json:"pipeline"`
	SessionID    string              `json:"session_id"`
	StartedAt    time.Time           `json:"started_at"`
	Phase        string              `json:"phase"`
	Steps        []StepRecord        `json:"steps"`
	SubPipelines []SubPipelineRecord `json:"sub_pipelines,omitempty"`
	FailedStep   string              `json:"failed_step,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
	Values       map[string]any      `json:"values,omitempty"`
}

// NewState starts the state of a fresh run.
func NewState(pipeline, session string) *State {
	return &State{
		Pipeline:  pipeline,
		SessionID: session,
		StartedAt: time.Now().UTC(),
		Phase:     PhaseRunning,
		Steps:     []StepRecord{},
		Values:    map[string]any{},
	}
}

// StepCount returns how many steps have completed.
func (s *State) StepCount() int { return len(s.Steps) }

// Completed reports whether a step named name already finished in this run.
func (s *State) Completed(name string) bool {
	for _, rec := range s.Steps {
		if rec.Name == name {
			return true
		}
	}
	return false
}

// LastSession returns the backend session id of the most recent step,
// empty when no step has recorded one yet.
func (s *State) LastSession() string {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if s.Steps[i].SessionID != "" {
			return s.Steps[i].SessionID
		}
	}
	return ""
}

// Value reads an application extension value.
func (s *State) Value(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// SetValue stores an application extension value.
func (s *State) SetValue(key string, value any) {
	if s.Values == nil {
		s.Values = map[string]any{}
	}
	s.Values[key] = value
}

// Clone deep-copies the state through its JSON form, the same shape the
// checkpoint store persists. Values that do not survive JSON fall back to
// a shallow copy.
func (s *State) Clone() *State {
	data, err := json.Marshal(s)
	if err != nil {
		copied := *s
		return &copied
	}
	out := &State{}
	if err := json.Unmarshal(data, out); err != nil {
		copied := *s
		return &copied
	}
	return out
}
