package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// JobInfo is a snapshot of an in-flight job.
type JobInfo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mode      Mode      `json:"mode"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

type activeJob struct {
	info   JobInfo
	cancel context.CancelFunc
}

// registry tracks at most one job per user.
type registry struct {
	mu   sync.Mutex
	jobs map[string]*activeJob
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*activeJob)}
}

func (r *registry) begin(info JobInfo, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[info.UserID]; ok {
		return ErrJobInProgress
	}
	r.jobs[info.UserID] = &activeJob{info: info, cancel: cancel}
	return nil
}

func (r *registry) setState(userID, jobID string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[userID]; ok && job.info.ID == jobID {
		job.info.State = state
	}
}

func (r *registry) finish(userID, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[userID]; ok && job.info.ID == jobID {
		delete(r.jobs, userID)
	}
}

func (r *registry) cancel(userID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

func (r *registry) busy(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[userID]
	return ok
}

func (r *registry) get(userID string) (JobInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID]
	if !ok {
		return JobInfo{}, false
	}
	return job.info, true
}

func (r *registry) list() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
