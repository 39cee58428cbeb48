package workflow

import (
	"fmt"
	"testing"
	"time"
)

func newTestStore() *Store {
	s := NewStore()
	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 10 * time.Millisecond)
	}
	return s
}

func threeSteps() []StepSpec {
	return []StepSpec{
		{ID: "upload", Name: "Upload"},
		{ID: "convert", Name: "Convert"},
		{ID: "store", Name: "Store"},
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all pending", []string{StatusPending, StatusPending}, StatusPending},
		{"one running", []string{StatusCompleted, StatusRunning, StatusPending}, StatusRunning},
		{"all completed", []string{StatusCompleted, StatusCompleted}, StatusCompleted},
		{"failed wins over running", []string{StatusCompleted, StatusFailed, StatusRunning}, StatusFailed},
		{"failed wins over completed", []string{StatusCompleted, StatusCompleted, StatusFailed}, StatusFailed},
		{"completed then pending", []string{StatusCompleted, StatusPending}, StatusPending},
		{"no steps", nil, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := make([]Step, len(tc.statuses))
			for i, st := range tc.statuses {
				steps[i] = Step{ID: fmt.Sprintf("s%d", i), Status: st}
			}
			if got := deriveStatus(steps); got != tc.want {
				t.Fatalf("deriveStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestStore()
	job := s.CreateJob("job-1", threeSteps())
	if job.Status != StatusPending {
		t.Fatalf("new job status = %q, want pending", job.Status)
	}
	if len(job.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(job.Steps))
	}

	s.StartStep("job-1", "upload")
	got, _ := s.GetJob("job-1")
	if got.Status != StatusRunning {
		t.Fatalf("after start: status = %q, want running", got.Status)
	}

	s.CompleteStep("job-1", "upload", map[string]any{"sizeBytes": 1024})
	s.StartStep("job-1", "convert")
	s.CompleteStep("job-1", "convert", nil)
	s.StartStep("job-1", "store")
	s.CompleteStep("job-1", "store", nil)

	got, ok := s.GetJob("job-1")
	if !ok {
		t.Fatal("job not found")
	}
	if got.Status != StatusCompleted {
		t.Fatalf("final status = %q, want completed", got.Status)
	}
	if got.Steps[0].DurationMs <= 0 {
		t.Fatalf("upload duration = %v, want > 0", got.Steps[0].DurationMs)
	}
	if got.Steps[0].Result == nil {
		t.Fatal("upload result not retained")
	}
}

func TestFailStepFailsJob(t *testing.T) {
	s := newTestStore()
	s.CreateJob("job-1", threeSteps())
	s.StartStep("job-1", "upload")
	s.CompleteStep("job-1", "upload", nil)
	s.StartStep("job-1", "convert")
	s.FailStep("job-1", "convert", "conversion service returned 502")

	got, _ := s.GetJob("job-1")
	if got.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if len(got.Steps[1].Details) == 0 || got.Steps[1].Details[0] != "conversion service returned 502" {
		t.Fatalf("failure reason not in detail log: %v", got.Steps[1].Details)
	}
	// later steps stay pending
	if got.Steps[2].Status != StatusPending {
		t.Fatalf("store step = %q, want pending", got.Steps[2].Status)
	}
}

func TestSubscribersReceiveFullSnapshots(t *testing.T) {
	s := newTestStore()
	s.CreateJob("job-1", threeSteps())

	var seen []Job
	unsub := s.Subscribe("job-1", func(j Job) { seen = append(seen, j) })

	s.StartStep("job-1", "upload")
	s.CompleteStep("job-1", "upload", nil)

	if len(seen) != 2 {
		t.Fatalf("notifications = %d, want 2", len(seen))
	}
	for _, snap := range seen {
		if len(snap.Steps) != 3 {
			t.Fatalf("snapshot steps = %d, want full job", len(snap.Steps))
		}
	}
	if seen[1].Steps[0].Status != StatusCompleted {
		t.Fatalf("second snapshot upload = %q, want completed", seen[1].Steps[0].Status)
	}

	unsub()
	s.StartStep("job-1", "convert")
	if len(seen) != 2 {
		t.Fatalf("notified after unsubscribe: %d", len(seen))
	}
	// unsubscribing again is a no-op
	unsub()
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := newTestStore()
	s.CreateJob("job-1", threeSteps())
	s.SetStepMetadata("job-1", "upload", "fileName", "doc.pdf")

	snap, _ := s.GetJob("job-1")
	snap.Steps[0].Status = StatusFailed
	snap.Steps[0].Metadata["fileName"] = "tampered.pdf"

	got, _ := s.GetJob("job-1")
	if got.Steps[0].Status != StatusPending {
		t.Fatal("mutating a snapshot leaked into the store")
	}
	if got.Steps[0].Metadata["fileName"] != "doc.pdf" {
		t.Fatal("mutating snapshot metadata leaked into the store")
	}
}

func TestDetailLogIsBounded(t *testing.T) {
	s := newTestStore()
	s.CreateJob("job-1", threeSteps())
	for i := 0; i < maxStepDetails+25; i++ {
		s.AppendDetail("job-1", "upload", fmt.Sprintf("detail %d", i))
	}
	got, _ := s.GetJob("job-1")
	details := got.Steps[0].Details
	if len(details) != maxStepDetails {
		t.Fatalf("details = %d, want %d", len(details), maxStepDetails)
	}
	if details[0] != "detail 25" {
		t.Fatalf("oldest retained detail = %q, want %q", details[0], "detail 25")
	}
}

func TestResetJob(t *testing.T) {
	s := newTestStore()
	s.CreateJob("job-1", threeSteps())
	s.StartStep("job-1", "upload")
	s.FailStep("job-1", "upload", "boom")

	s.ResetJob("job-1")
	got, _ := s.GetJob("job-1")
	if got.Status != StatusPending {
		t.Fatalf("status after reset = %q, want pending", got.Status)
	}
	for _, step := range got.Steps {
		if step.Status != StatusPending || step.StartedAt != nil || len(step.Details) != 0 {
			t.Fatalf("step %s not fully reset: %+v", step.ID, step)
		}
	}
}

func TestUnknownJobAndStepAreIgnored(t *testing.T) {
	s := newTestStore()
	s.StartStep("missing", "upload")
	s.CreateJob("job-1", threeSteps())
	s.CompleteStep("job-1", "missing-step", nil)
	got, _ := s.GetJob("job-1")
	if got.Status != StatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
}
