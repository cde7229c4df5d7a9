package model

import "time"

// Recommendation is the publish decision derived from the confidence score
type Recommendation string

const (
	RecommendPublish    Recommendation = "publish"
	RecommendReview     Recommendation = "review"
	RecommendEdit       Recommendation = "edit"
	RecommendRegenerate Recommendation = "regenerate"
)

// Confidence is the scorer's output
type Confidence struct {
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
}

// State is a pipeline controller state
type State string

const (
	StateExtracting State = "extracting"
	StateGenerating State = "generating"
	StateVerifying  State = "verifying"
	StateRepairing  State = "repairing"
	StateVerified   State = "verified"
	StateTerminal   State = "terminal"
)

// PipelineResult is the terminal, immutable output of one pipeline run
type PipelineResult struct {
	RunID             string             `json:"run_id"`
	OriginID          string             `json:"origin_id"`
	Draft             ContentDraft       `json:"draft"`
	Verification      VerificationResult `json:"verification"`
	ConfidenceScore   int                `json:"confidence_score"`
	Recommendation    Recommendation     `json:"recommendation"`
	NeedsManualReview bool               `json:"needs_manual_review"`

	Facts       FactSet   `json:"facts"`
	Iterations  int       `json:"iterations"` // Repair iterations performed
	States      []State   `json:"states"`     // Controller states visited, in order
	CompletedAt time.Time `json:"completed_at"`
}
