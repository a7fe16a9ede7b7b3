package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus enumerates run lifecycle states in the background queue.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// StageKind enumerates pipeline stage categories.
type StageKind string

const (
	// StageBatch applies one planned batch of selections. Mandatory: a
	// failure here fails the run after the retry budget is spent.
	StageBatch StageKind = "batch"
	// StagePolicyCorrection runs the per-photo policy's second pass.
	// Best effort: a failure keeps the previous stage's output.
	StagePolicyCorrection StageKind = "policy-correction"
	// StageRangeCorrection fixes slide-in range geometry for the hard-coded
	// allowlist of known-problematic range options. Best effort.
	StageRangeCorrection StageKind = "range-correction"
)

// BatchEntry is one selection resolved against the catalog, carrying
// everything a stage needs so execution never re-reads the catalog.
type BatchEntry struct {
	SubcategoryID   string   `json:"subId"`
	OptionID        string   `json:"optId"`
	SubcategoryName string   `json:"subName"`
	OptionName      string   `json:"optName"`
	Descriptor      string   `json:"descriptor,omitempty"`
	SwatchPath      string   `json:"swatchPath,omitempty"`
	SpatialHint     string   `json:"spatialHint,omitempty"`
	IsAppliance     bool     `json:"isAppliance,omitempty"`
	Rules           []string `json:"rules,omitempty"`
}

// Batch is an ordered fragment of the original selection set, sized so its
// swatch-bearing entries fit the provider's attachment ceiling.
type Batch struct {
	Entries []BatchEntry `json:"entries"`
}

// RangeCorrectionSpec is the precomputed input for the fixed correction pass.
type RangeCorrectionSpec struct {
	OptionName string `json:"optionName"`
	Descriptor string `json:"descriptor,omitempty"`
	SwatchPath string `json:"swatchPath,omitempty"`
}

// Stage is one scheduled step of a run.
type Stage struct {
	Kind  StageKind
	Label string
	// Batch indexes into the plan's batches for StageBatch stages.
	Batch int
}

// RunPlan is the immutable execution plan serialized into the run row at
// dispatch time. Workers resume from it on any instance.
type RunPlan struct {
	SelectionsHash   string               `json:"selectionsHash"`
	Fingerprint      string               `json:"fingerprint"`
	OrgID            string               `json:"orgId"`
	PhotoID          string               `json:"photoId"`
	StepID           string               `json:"stepId,omitempty"`
	SessionID        string               `json:"sessionId"`
	Model            string               `json:"model"`
	BaseImagePath    string               `json:"baseImagePath"`
	SceneDescription string               `json:"sceneDescription,omitempty"`
	PhotoBaseline    string               `json:"photoBaseline,omitempty"`
	PhotoSpatialHint string               `json:"photoSpatialHint,omitempty"`
	SelectionsJSON   []byte               `json:"selectionsJson"`
	Batches          []Batch              `json:"batches"`
	Policy           ResolvedPolicy       `json:"policy"`
	RangeCorrection  *RangeCorrectionSpec `json:"rangeCorrection,omitempty"`
}

// Stages expands the plan into its ordered stage sequence: every batch, then
// the optional policy pass, then the optional range pass.
func (p *RunPlan) Stages() []Stage {
	stages := make([]Stage, 0, len(p.Batches)+2)
	for i := range p.Batches {
		stages = append(stages, Stage{
			Kind:  StageBatch,
			Label: fmt.Sprintf("batch-%d", i+1),
			Batch: i,
		})
	}
	if p.Policy.SecondPass != nil {
		stages = append(stages, Stage{Kind: StagePolicyCorrection, Label: "policy-correction"})
	}
	if p.RangeCorrection != nil {
		stages = append(stages, Stage{Kind: StageRangeCorrection, Label: "range-correction"})
	}
	return stages
}

// PassArtifact records one stage's stored debug output for auditing.
type PassArtifact struct {
	Seq   int    `json:"seq"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// GenerationRun is one row of the background run queue. StageIndex is the next
// stage to execute; a claim runs exactly one stage and requeues or finishes.
type GenerationRun struct {
	ID             uuid.UUID
	SelectionsHash string
	Status         RunStatus
	StageIndex     int
	StageCount     int
	Attempts       int
	PlanJSON       []byte
	Trail          string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
