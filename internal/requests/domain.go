package requests

import (
	"time"

	"github.com/manarah-platform/manarah/internal/authz"
)

// Stage is a fixed position in the request pipeline, ordered. Requests
// never skip backward except through the explicit reopen action.
type Stage string

const (
	StageSubmitted     Stage = "submitted"
	StageInitialReview Stage = "initial_review"
	StageFieldVisit    Stage = "field_visit"
	StageTechnicalEval Stage = "technical_eval"
	StageFinancialEval Stage = "financial_eval"
	StageExecution     Stage = "execution"
	StageClosed        Stage = "closed"
)

var stageOrder = []Stage{
	StageSubmitted,
	StageInitialReview,
	StageFieldVisit,
	StageTechnicalEval,
	StageFinancialEval,
	StageExecution,
	StageClosed,
}

// Index returns the position of the stage in the pipeline, -1 if unknown.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage; ok is false at the end of the pipeline.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[i+1], true
}

// ExitAction names the permission-gate action for leaving this stage.
func (s Stage) ExitAction() authz.Action {
	switch s {
	case StageSubmitted:
		return authz.ActionAdvanceSubmitted
	case StageInitialReview:
		return authz.ActionAdvanceInitialReview
	case StageFieldVisit:
		return authz.ActionAdvanceFieldVisit
	case StageTechnicalEval:
		return authz.ActionAdvanceTechnicalEval
	case StageFinancialEval:
		return authz.ActionAdvanceFinancialEval
	case StageExecution:
		return authz.ActionAdvanceExecution
	default:
		return ""
	}
}

// Status tracks outcome orthogonally to stage.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// ProgramType enumerates the mosque service programs.
type ProgramType string

const (
	ProgramConstruction ProgramType = "construction"
	ProgramRenovation   ProgramType = "renovation"
	ProgramMaintenance  ProgramType = "maintenance"
	ProgramExpansion    ProgramType = "expansion"
	ProgramFurnishing   ProgramType = "furnishing"
)

func validProgramType(p ProgramType) bool {
	switch p {
	case ProgramConstruction, ProgramRenovation, ProgramMaintenance, ProgramExpansion, ProgramFurnishing:
		return true
	}
	return false
}

// Priority of a service request.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Request is a mosque-service request tracked from submission to closure.
// Requests are never hard-deleted; cancellation is a terminal status.
type Request struct {
	ID            int64
	Number        string
	ProgramType   ProgramType
	CurrentStage  Stage
	Status        Status
	Priority      Priority
	MosqueID      int64
	RequesterID   int64
	EstimatedCost float64
	Description   string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HistoryEntry is one append-only audit row. Entries are never mutated
// after creation.
type HistoryEntry struct {
	ID         int64
	RequestID  int64
	ActorID    int64
	Action     string
	FromStage  Stage
	ToStage    Stage
	FromStatus Status
	ToStatus   Status
	Reason     string
	At         time.Time
}
