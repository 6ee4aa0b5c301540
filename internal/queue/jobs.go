package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Job represents one recording moving through the pipeline
type Job struct {
	ID          string
	RequestName string
	SourceType  string
	FilePath    string
	Error       error
	Result      *types.RecordingResult
	CreatedAt   time.Time

	mu          sync.Mutex
	status      string
	stage       string
	chunksTotal int
	chunksDone  int
}

// NewJob creates a new job with default values
func NewJob(id, requestName, sourceType, filePath string) *Job {
	return &Job{
		ID:          id,
		RequestName: requestName,
		SourceType:  sourceType,
		FilePath:    filePath,
		status:      types.StatusQueued,
		CreatedAt:   time.Now(),
	}
}

// SetStatus updates the job status.
func (j *Job) SetStatus(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Fail marks the job failed with the given error.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = types.StatusFailed
	j.Error = err
}

// SetStage records which pipeline stage the job is in.
func (j *Job) SetStage(stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stage = stage
}

// SetChunkProgress records the chunk fan-out totals.
func (j *Job) SetChunkProgress(done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunksDone = done
	j.chunksTotal = total
}

// ChunkDone increments the completed chunk counter.
func (j *Job) ChunkDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunksDone++
}

// Progress is a point-in-time snapshot of a job for the status stream.
type Progress struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	ChunksDone  int    `json:"chunks_done"`
	ChunksTotal int    `json:"chunks_total"`
	Error       string `json:"error,omitempty"`
}

// Snapshot returns a consistent copy of the job's progress.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()

	p := Progress{
		JobID:       j.ID,
		Name:        j.RequestName,
		Status:      j.status,
		Stage:       j.stage,
		ChunksDone:  j.chunksDone,
		ChunksTotal: j.chunksTotal,
	}
	if j.Error != nil {
		p.Error = j.Error.Error()
	}
	return p
}
