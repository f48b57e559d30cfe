package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
)

// Job represents one submitted document's processing lifecycle.
type Job struct {
	ID           uuid.UUID          `json:"id"`
	OwnerID      *uuid.UUID         `json:"owner_id,omitempty"`
	SourceName   string             `json:"source_name"`
	State        constants.JobState `json:"state"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
}

// transitions lists the only allowed forward moves.
var transitions = map[constants.JobState][]constants.JobState{
	constants.JobStatePending:    {constants.JobStateProcessing},
	constants.JobStateProcessing: {constants.JobStateCompleted, constants.JobStateFailed},
}

// CanTransition reports whether a job may move from one state to another.
func CanTransition(from, to constants.JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckInvariant verifies finished_at is set iff the job is terminal.
func (j *Job) CheckInvariant() error {
	if !j.State.Valid() {
		return fmt.Errorf("job %s: unknown state %q", j.ID, j.State)
	}
	if j.State.Terminal() != (j.FinishedAt != nil) {
		return fmt.Errorf("job %s: state=%s finished_at_set=%t", j.ID, j.State, j.FinishedAt != nil)
	}
	return nil
}
