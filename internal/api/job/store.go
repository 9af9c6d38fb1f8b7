// internal/api/job/store.go
package job

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/verdict/internal/core"
)

// Status represents run status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Failure is the JSON form of a run error.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is one resolution run started by the API or the scheduler.
type Job struct {
	ID        string    `json:"id"`
	Trigger   string    `json:"trigger"`
	Status    Status    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     *Failure  `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store keeps a bounded, in-memory history of runs.
type Store struct {
	jobs    map[string]*Job
	order   []string // insertion order for eviction
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewStore creates a store holding at most maxSize runs, each for at most ttl.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create records a new pending run and returns it.
func (s *Store) Create(trigger string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)

	job := &Job{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Evict oldest if at capacity
	for len(s.order) >= s.maxSize {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	jobCopy := *job
	return &jobCopy
}

// expire drops runs older than the ttl. Callers hold the lock.
func (s *Store) expire(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	keep := s.order[:0]
	for _, id := range s.order {
		if now.Sub(s.jobs[id].CreatedAt) > s.ttl {
			delete(s.jobs, id)
			continue
		}
		keep = append(keep, id)
	}
	s.order = keep
}

// Get retrieves a run by ID.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("run %q", id))
	}

	jobCopy := *job
	return &jobCopy, nil
}

// Update modifies a run using an update function.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("run %q", id))
	}

	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// Start marks a run as running.
func (s *Store) Start(id string) error {
	return s.Update(id, func(j *Job) { j.Status = StatusRunning })
}

// Finish records the result or failure of a run.
func (s *Store) Finish(id string, result any, err error) error {
	return s.Update(id, func(j *Job) {
		if err != nil {
			j.Status = StatusFailed
			j.Error = failureOf(err)
			return
		}
		j.Status = StatusComplete
		j.Result = result
	})
}

func failureOf(err error) *Failure {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return &Failure{Code: coreErr.Code, Message: err.Error()}
	}
	return &Failure{Code: "INTERNAL_ERROR", Message: err.Error()}
}

// List returns all runs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		result = append(result, *job)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}
