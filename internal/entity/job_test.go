package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to constants.JobState
		want     bool
	}{
		{constants.JobStatePending, constants.JobStateProcessing, true},
		{constants.JobStateProcessing, constants.JobStateCompleted, true},
		{constants.JobStateProcessing, constants.JobStateFailed, true},
		{constants.JobStatePending, constants.JobStateCompleted, false},
		{constants.JobStatePending, constants.JobStateFailed, false},
		{constants.JobStateCompleted, constants.JobStatePending, false},
		{constants.JobStateFailed, constants.JobStatePending, false},
		{constants.JobStateFailed, constants.JobStateProcessing, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s, %s) = %t, want %t", c.from, c.to, got, c.want)
		}
	}
}

func TestCheckInvariant(t *testing.T) {
	now := time.Now()
	j := &Job{ID: uuid.New(), State: constants.JobStatePending}
	if err := j.CheckInvariant(); err != nil {
		t.Fatalf("pending without finished_at: %v", err)
	}
	j.FinishedAt = &now
	if err := j.CheckInvariant(); err == nil {
		t.Fatal("expected error for pending job with finished_at")
	}
	j.State = constants.JobStateFailed
	if err := j.CheckInvariant(); err != nil {
		t.Fatalf("failed with finished_at: %v", err)
	}
	j.FinishedAt = nil
	if err := j.CheckInvariant(); err == nil {
		t.Fatal("expected error for terminal job without finished_at")
	}
}

func TestArtifactRender(t *testing.T) {
	a := Artifact{Explanations: []string{"E1", "E2"}}
	if got := a.Render(); got != "E1\nE2" {
		t.Fatalf("Render = %q", got)
	}
	m := a.BySlide()
	if m["slide1"] != "E1" || m["slide2"] != "E2" || len(m) != 2 {
		t.Fatalf("BySlide = %v", m)
	}
}

func TestHallName(t *testing.T) {
	if got := HallName("Hall7_lecture_3.pptx"); got != "Hall7" {
		t.Fatalf("HallName = %q", got)
	}
	if got := HallName("intro.pptx"); got != "intro" {
		t.Fatalf("HallName = %q", got)
	}
}
