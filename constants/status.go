package constants

// JobState is the canonical state for rows in the jobs table.
type JobState string

// Stable values (store these exact strings in DB).
const (
	JobStatePending    JobState = "pending"    // submitted, waiting for a worker
	JobStateProcessing JobState = "processing" // claimed by a worker
	JobStateCompleted  JobState = "completed"  // terminal, artifact written
	JobStateFailed     JobState = "failed"     // terminal, no artifact
)

// AllJobStates lists every state in lifecycle order.
var AllJobStates = []JobState{
	JobStatePending,
	JobStateProcessing,
	JobStateCompleted,
	JobStateFailed,
}

// Terminal reports whether no further transition is allowed out of s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// Valid reports whether s is one of the known states.
func (s JobState) Valid() bool {
	for _, v := range AllJobStates {
		if v == s {
			return true
		}
	}
	return false
}

const (
	// FailureMessage is shown in place of an explanation for failed jobs.
	FailureMessage = "Processing failed. Please resubmit the document."

	// UnitErrorPrefix starts the placeholder stored for a slide whose explanation could not be produced.
	UnitErrorPrefix = "Something is wrong: Error processing slide:"
)
