package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"

	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusComplete   = "complete"
	FileStatusError      = "error"

	// Finished jobs are forgotten after this long.
	defaultJobRetention = time.Hour
)

// DocumentResult is the outcome of ingesting one uploaded PDF.
type DocumentResult struct {
	DocumentID string `json:"documentId,omitempty"`
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	Flashcards int    `json:"flashcards"`
}

// UploadJob tracks the progress of a multi-file PDF upload.
type UploadJob struct {
	ID        string           `json:"jobId"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Files     []FileProgress   `json:"files"`
	Results   []DocumentResult `json:"results,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// FileProgress is the per-file state the client polls.
type FileProgress struct {
	Index   int             `json:"index"`
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Step    string          `json:"step,omitempty"`
	Message string          `json:"message,omitempty"`
	Current int             `json:"current"`
	Total   int             `json:"total"`
	Percent int             `json:"percent"`
	Result  *DocumentResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// JobManager keeps upload jobs in memory. All snapshots it returns are
// copies, so callers may read them without locking.
type JobManager struct {
	mu        sync.RWMutex
	jobs      map[string]*UploadJob
	retention time.Duration
	now       func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*UploadJob),
		retention: defaultJobRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob registers a pending job with one entry per file name. Finished
// jobs past the retention window are dropped on the way.
func (m *JobManager) CreateJob(fileNames []string) *UploadJob {
	files := make([]FileProgress, len(fileNames))
	for i, name := range fileNames {
		files[i] = FileProgress{
			Index:  i,
			Name:   name,
			Status: FileStatusPending,
			Total:  100,
		}
	}
	now := m.now()
	job := &UploadJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Files:     files,
	}

	m.mu.Lock()
	m.pruneLocked(now)
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.clone()
}

func (m *JobManager) GetJob(id string) (*UploadJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *UploadJob) {
		job.Status = JobStatusProcessing
	})
}

// MarkCompleted finishes the job. A job whose every file failed is marked
// failed instead.
func (m *JobManager) MarkCompleted(id string) {
	m.withJob(id, func(job *UploadJob) {
		failed := 0
		for _, file := range job.Files {
			if file.Status == FileStatusError {
				failed++
			}
		}
		if len(job.Files) > 0 && failed == len(job.Files) {
			job.Status = JobStatusFailed
			job.Error = "no file could be processed"
			return
		}
		job.Status = JobStatusComplete
	})
}

func (m *JobManager) MarkFailed(id string, msg string) {
	m.withJob(id, func(job *UploadJob) {
		job.Status = JobStatusFailed
		job.Error = strings.TrimSpace(msg)
	})
}

func (m *JobManager) MarkFileStarted(id string, index int) {
	m.withJob(id, func(job *UploadJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusProcessing
			file.Step = ""
			file.Message = "Starting"
			file.Current = 0
			file.Total = 100
			file.Percent = 0
			file.Error = ""
		}
	})
}

func (m *JobManager) UpdateFileProgress(id string, index int, step, message string, current, total int) {
	m.withJob(id, func(job *UploadJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusProcessing
			file.Step = step
			file.Message = message
			file.Current = current
			file.Total = total
			file.Percent = percent(current, total)
		}
	})
}

func (m *JobManager) MarkFileComplete(id string, index int, result DocumentResult) {
	result.Status = FileStatusComplete
	m.withJob(id, func(job *UploadJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusComplete
			file.Step = "complete"
			if result.Message != "" {
				file.Message = result.Message
			} else {
				file.Message = "Processing complete"
			}
			file.Current = 100
			file.Total = 100
			file.Percent = 100
			file.Result = &result
			file.Error = ""
		}
		job.Results = append(job.Results, result)
	})
}

func (m *JobManager) MarkFileError(id string, index int, message string, result DocumentResult) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "processing error"
	}
	result.Status = FileStatusError
	if result.Message == "" {
		result.Message = msg
	}
	m.withJob(id, func(job *UploadJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusError
			file.Step = "error"
			file.Message = msg
			file.Error = msg
			file.Current = 100
			file.Total = 100
			file.Percent = 100
			file.Result = &result
		}
		job.Results = append(job.Results, result)
	})
}

func (m *JobManager) withJob(id string, fn func(job *UploadJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = m.now()
}

func (m *JobManager) pruneLocked(now time.Time) {
	for id, job := range m.jobs {
		if job.finished() && now.Sub(job.UpdatedAt) > m.retention {
			delete(m.jobs, id)
		}
	}
}

func (job *UploadJob) finished() bool {
	return job.Status == JobStatusComplete || job.Status == JobStatusFailed
}

func (job *UploadJob) file(index int) *FileProgress {
	if index < 0 || index >= len(job.Files) {
		return nil
	}
	return &job.Files[index]
}

func (job *UploadJob) clone() *UploadJob {
	if job == nil {
		return nil
	}
	cp := *job
	cp.Files = make([]FileProgress, len(job.Files))
	for i, file := range job.Files {
		cp.Files[i] = file
		if file.Result != nil {
			res := *file.Result
			cp.Files[i].Result = &res
		}
	}
	if len(job.Results) > 0 {
		cp.Results = append([]DocumentResult(nil), job.Results...)
	}
	return &cp
}

func percent(current, total int) int {
	if total <= 0 {
		return min(max(current, 0), 100)
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return current * 100 / total
}
