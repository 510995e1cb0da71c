package service

import (
	"sync"
	"time"

	"github.com/docuflow/intake-api/internal/models"
)

// jobTracker holds the transient, advisory view of in-flight runs, keyed by
// document id. It is deliberately process-local: the authoritative state lives
// on the document row, and after a restart callers fall back to it.
type jobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*models.ProcessingJob
}

func newJobTracker() *jobTracker {
	return &jobTracker{jobs: make(map[string]*models.ProcessingJob)}
}

func (t *jobTracker) begin(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[documentID] = &models.ProcessingJob{
		DocumentID: documentID,
		Stage:      models.StageOCR,
		Progress:   0,
		Message:    "starting",
		StartedAt:  time.Now().UTC(),
	}
}

func (t *jobTracker) update(documentID string, stage models.ProcessingStage, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[documentID]
	if !ok {
		return
	}
	job.Stage = stage
	job.Progress = progress
	job.Message = message
}

// snapshot returns a copy so callers never observe a partially updated job.
func (t *jobTracker) snapshot(documentID string) (models.ProcessingJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[documentID]
	if !ok {
		return models.ProcessingJob{}, false
	}
	return *job, true
}

func (t *jobTracker) finish(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, documentID)
}
