package models

// StageKind identifies one of the three pipeline stages.
type StageKind string

const (
	StagePrimary  StageKind = "primary"
	StageLSI      StageKind = "lsi"
	StageKeywords StageKind = "keywords"
)

// StageStatus is the lifecycle state of one stage controller.
type StageStatus string

const (
	StageIdle       StageStatus = "idle"
	StageSubmitting StageStatus = "submitting"

	// StageStreaming means a live progress stream is attached.
	StageStreaming StageStatus = "streaming"

	// StageRunning means the stage is waiting on a plain request with
	// simulated progress only (no push channel).
	StageRunning StageStatus = "running"

	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
)

// Active reports whether a job is in flight.
func (s StageStatus) Active() bool {
	switch s {
	case StageSubmitting, StageStreaming, StageRunning:
		return true
	}
	return false
}

// Terminal reports whether the stage has finished, either way.
func (s StageStatus) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// StageView is the per-stage read model exposed to the UI layer.
type StageView struct {
	Kind     StageKind    `json:"kind"`
	Status   StageStatus  `json:"status"`
	Progress float64      `json:"progress"`
	TaskID   string       `json:"task_id,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// PipelineSnapshot is the full coordinator read model. All slices and
// maps are copies; mutating a snapshot never touches live state.
type PipelineSnapshot struct {
	Primary  StageView `json:"primary"`
	LSI      StageView `json:"lsi"`
	Keywords StageView `json:"keywords"`

	MyPage      *OwnPage           `json:"my_page,omitempty"`
	Competitors []CompetitorRecord `json:"competitors"`
	Selected    []string           `json:"selected"`
	Summary     *AnalysisSummary   `json:"summary,omitempty"`

	LSIData      *LSIResult      `json:"lsi_data,omitempty"`
	KeywordsData *KeywordsResult `json:"keywords_data,omitempty"`
}
