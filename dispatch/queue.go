package dispatch

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/realtechee/platform/errors"
)

const (
	// MaxJobsLimit is the maximum number of jobs that can be queued
	MaxJobsLimit = 10000
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Queue is the mutex-guarded front of the job store. Every state change
// flows through it so subscribers (the websocket hub) see all updates.
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Job
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:       NewStore(db),
		subscribers: make([]chan *Job, 0),
	}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.store.CountByStatus(JobStatusQueued)
	if err != nil {
		return errors.Wrap(err, "failed to check queue depth")
	}
	if queued >= MaxJobsLimit {
		return errors.Newf("queue full: %d jobs queued", queued)
	}

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// Dequeue gets the oldest queued job and marks it as running
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.OldestQueued()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued job")
	}
	if job == nil {
		return nil, nil // No jobs available
	}

	job.Start()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as running")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		return nil, err
	}

	q.notifySubscribers(job)
	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.GetJob(id)
}

// ListJobs returns jobs, optionally filtered by status
func (q *Queue) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.ListJobs(status, limit)
}

// UpdateJob updates a job's state
func (q *Queue) UpdateJob(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to update job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Status: %s", job.Status))
		return err
	}

	q.notifySubscribers(job)
	return nil
}

// CancelJob cancels a queued or running job.
// Terminal jobs cannot be cancelled.
func (q *Queue) CancelJob(id string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}

	if job.IsTerminal() {
		return errors.NewValidation("job %s already %s", id, job.Status)
	}

	job.Cancel(reason)
	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrap(err, "failed to cancel job")
	}

	q.notifySubscribers(job)
	return nil
}

// QueueDepth returns the number of queued jobs
func (q *Queue) QueueDepth() (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.store.CountByStatus(JobStatusQueued)
}

// GetJobCounts returns the number of queued and running jobs
func (q *Queue) GetJobCounts() (queued int, running int, err error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	queued, err = q.store.CountByStatus(JobStatusQueued)
	if err != nil {
		return 0, 0, err
	}
	running, err = q.store.CountByStatus(JobStatusRunning)
	if err != nil {
		return 0, 0, err
	}
	return queued, running, nil
}

// Subscribe returns a channel receiving every job state change.
// Slow subscribers miss updates rather than blocking the queue.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// notifySubscribers sends the job to all subscribers without blocking.
// Caller must hold q.mu.
func (q *Queue) notifySubscribers(job *Job) {
	for _, ch := range q.subscribers {
		select {
		case ch <- job:
		default:
			// Subscriber buffer full - drop rather than block the queue
		}
	}
}
