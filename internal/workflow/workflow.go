package workflow

import (
	"sync"
	"time"
)

// Status values for jobs and steps.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// maxStepDetails bounds the per-step detail log; the oldest entries are
// dropped once the bound is reached.
const maxStepDetails = 100

// StepSpec declares one step when a job is created.
type StepSpec struct {
	ID          string
	Name        string
	Description string
}

// Step mirrors one unit of pipeline work for progress reporting.
type Step struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
	DurationMs  float64        `json:"durationMs"`
	Details     []string       `json:"details,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Result      any            `json:"result,omitempty"`
}

// Job is the in-memory mirror of a processing run. Job status is derived
// from step statuses and never set directly.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subscriber receives a full job snapshot after every step transition.
// Consumers replace their view wholesale; snapshots are never diffs.
type Subscriber func(Job)

// Store holds in-flight and completed workflow jobs for the process
// lifetime. It is an injectable state object: tests and independent
// consumers create their own instances. Entries are never evicted.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	subs    map[string]map[int]Subscriber
	nextSub int
	now     func() time.Time
}

// NewStore creates an empty workflow store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
		subs: make(map[string]map[int]Subscriber),
		now:  time.Now,
	}
}

// CreateJob registers a job with its ordered steps, all pending.
func (s *Store) CreateJob(jobID string, specs []StepSpec) Job {
	s.mu.Lock()
	now := s.now().UTC()
	job := &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, spec := range specs {
		job.Steps = append(job.Steps, Step{
			ID:          spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			Status:      StatusPending,
		})
	}
	s.jobs[jobID] = job
	snap := cloneJob(job)
	s.mu.Unlock()
	return snap
}

// GetJob returns a snapshot of the job, if known.
func (s *Store) GetJob(jobID string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return cloneJob(job), true
}

// StartStep moves a pending step to running.
func (s *Store) StartStep(jobID, stepID string) {
	s.transition(jobID, stepID, func(step *Step) {
		started := s.now().UTC()
		step.Status = StatusRunning
		step.StartedAt = &started
	})
}

// CompleteStep marks a step completed with an optional result payload
// available to later steps and progress consumers.
func (s *Store) CompleteStep(jobID, stepID string, result any) {
	s.transition(jobID, stepID, func(step *Step) {
		s.finish(step, StatusCompleted)
		step.Result = result
	})
}

// FailStep marks a step failed with a reason in its detail log.
func (s *Store) FailStep(jobID, stepID, reason string) {
	s.transition(jobID, stepID, func(step *Step) {
		s.finish(step, StatusFailed)
		if reason != "" {
			appendDetail(step, reason)
		}
	})
}

// AppendDetail adds a free-text line to a step's bounded detail log.
func (s *Store) AppendDetail(jobID, stepID, detail string) {
	s.transition(jobID, stepID, func(step *Step) {
		appendDetail(step, detail)
	})
}

// SetStepMetadata attaches a metadata key to a step.
func (s *Store) SetStepMetadata(jobID, stepID, key string, value any) {
	s.transition(jobID, stepID, func(step *Step) {
		if step.Metadata == nil {
			step.Metadata = make(map[string]any)
		}
		step.Metadata[key] = value
	})
}

// ResetJob returns every step to pending and clears captured detail,
// metadata, and results. Used only by a full job retry.
func (s *Store) ResetJob(jobID string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range job.Steps {
		step := &job.Steps[i]
		step.Status = StatusPending
		step.StartedAt = nil
		step.EndedAt = nil
		step.DurationMs = 0
		step.Details = nil
		step.Metadata = nil
		step.Result = nil
	}
	job.Status = deriveStatus(job.Steps)
	job.UpdatedAt = s.now().UTC()
	snap, subs := s.snapshotAndSubs(job)
	s.mu.Unlock()
	notify(snap, subs)
}

// Subscribe registers fn for every subsequent notification of the job.
// The returned function unsubscribes; calling it more than once, or after
// the store forgot the subscription, is a no-op.
func (s *Store) Subscribe(jobID string, fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[jobID] == nil {
		s.subs[jobID] = make(map[int]Subscriber)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[jobID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[jobID], id)
	}
}

func (s *Store) transition(jobID, stepID string, mutate func(*Step)) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range job.Steps {
		if job.Steps[i].ID == stepID {
			mutate(&job.Steps[i])
			break
		}
	}
	job.Status = deriveStatus(job.Steps)
	job.UpdatedAt = s.now().UTC()
	snap, subs := s.snapshotAndSubs(job)
	s.mu.Unlock()
	notify(snap, subs)
}

// snapshotAndSubs must be called with the lock held; the snapshot and the
// subscriber list are captured atomically so every notification reflects a
// fully-applied step update.
func (s *Store) snapshotAndSubs(job *Job) (Job, []Subscriber) {
	snap := cloneJob(job)
	var subs []Subscriber
	for _, fn := range s.subs[job.ID] {
		subs = append(subs, fn)
	}
	return snap, subs
}

func notify(snap Job, subs []Subscriber) {
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) finish(step *Step, status string) {
	ended := s.now().UTC()
	step.Status = status
	step.EndedAt = &ended
	if step.StartedAt != nil {
		step.DurationMs = float64(ended.Sub(*step.StartedAt).Microseconds()) / 1000.0
	}
}

func appendDetail(step *Step, detail string) {
	step.Details = append(step.Details, detail)
	if len(step.Details) > maxStepDetails {
		step.Details = step.Details[len(step.Details)-maxStepDetails:]
	}
}

// deriveStatus computes a job status purely from its steps: failed wins,
// then all-completed, then any-running, else pending.
func deriveStatus(steps []Step) string {
	if len(steps) == 0 {
		return StatusPending
	}
	completed := 0
	running := false
	for _, step := range steps {
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusCompleted:
			completed++
		case StatusRunning:
			running = true
		}
	}
	if completed == len(steps) {
		return StatusCompleted
	}
	if running {
		return StatusRunning
	}
	return StatusPending
}

func cloneJob(job *Job) Job {
	out := *job
	out.Steps = make([]Step, len(job.Steps))
	copy(out.Steps, job.Steps)
	for i := range out.Steps {
		if details := out.Steps[i].Details; details != nil {
			out.Steps[i].Details = append([]string(nil), details...)
		}
		if meta := out.Steps[i].Metadata; meta != nil {
			cloned := make(map[string]any, len(meta))
			for k, v := range meta {
				cloned[k] = v
			}
			out.Steps[i].Metadata = cloned
		}
	}
	return out
}
