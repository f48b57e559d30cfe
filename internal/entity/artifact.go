package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Artifact is the ordered set of explanations produced for a completed job.
type Artifact struct {
	JobID        uuid.UUID `json:"job_id"`
	Explanations []string  `json:"explanations"`
	CreatedAt    time.Time `json:"created_at"`
}

// Render joins the explanations in slide order.
func (a Artifact) Render() string {
	return strings.Join(a.Explanations, "\n")
}

// BySlide keys explanations slide1..slideN.
func (a Artifact) BySlide() map[string]string {
	out := make(map[string]string, len(a.Explanations))
	for i, e := range a.Explanations {
		out[SlideKey(i)] = e
	}
	return out
}

// SlideKey returns the 1-based key for the unit at index i.
func SlideKey(i int) string {
	return fmt.Sprintf("slide%d", i+1)
}
