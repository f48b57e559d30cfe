package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
)

// StatusView is what clients see when polling a job.
type StatusView struct {
	JobID       uuid.UUID          `json:"jobId"`
	State       constants.JobState `json:"state"`
	SourceName  string             `json:"sourceName"`
	HallName    string             `json:"hallName"`
	SubmittedAt time.Time          `json:"submittedAt"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
	Explanation *string            `json:"explanation"`
}

// HallName is the source name prefix before the first underscore.
func HallName(sourceName string) string {
	name := sourceName
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "_"); i >= 0 {
		return name[:i]
	}
	return name
}
