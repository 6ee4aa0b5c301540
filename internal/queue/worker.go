package queue

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/chunking"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/consolidate"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/transcript"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Transcriber produces timestamped ASR segments for one chunk file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.Segment, string, error)
}

// Diarizer produces chunk-local speech turns for one chunk file.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]types.LocalTurn, error)
}

// EmbeddingExtractor derives per-speaker representative embeddings from a
// chunk's turns.
type EmbeddingExtractor interface {
	ExtractSpeakerEmbeddings(ctx context.Context, audioPath string, turns []types.LocalTurn) (map[string]types.SpeakerEmbedding, error)
}

// MediaProcessor covers the ffmpeg operations the pipeline needs.
type MediaProcessor interface {
	Normalize(inputPath, tempDir string) (string, error)
	ProbeDuration(audioPath string) (float64, error)
	ExtractChunk(ctx context.Context, audioPath, chunkPath string, offset, duration float64) error
}

// PipelineConfig carries the tunables for one recording's processing.
type PipelineConfig struct {
	Chunking      chunking.Config
	Consolidation consolidate.Config
	ChunkWorkers  int
	ChunkTimeout  time.Duration
	TempDir       string
}

// WorkerPool manages a pool of workers processing recording jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	media       MediaProcessor
	diarizer    Diarizer
	embeddings  EmbeddingExtractor
	transcriber Transcriber

	localStorage *storage.LocalStorage
	driveClient  *storage.DriveClient
	db           *storage.MetadataDB
	cfg          PipelineConfig

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	workerCount int,
	media MediaProcessor,
	diarizer Diarizer,
	embeddings EmbeddingExtractor,
	transcriber Transcriber,
	localStorage *storage.LocalStorage,
	driveClient *storage.DriveClient,
	db *storage.MetadataDB,
	cfg PipelineConfig,
) *WorkerPool {
	return &WorkerPool{
		jobQueue:     make(chan *Job, 100), // Buffer of 100 jobs
		workerCount:  workerCount,
		media:        media,
		diarizer:     diarizer,
		embeddings:   embeddings,
		transcriber:  transcriber,
		localStorage: localStorage,
		driveClient:  driveClient,
		db:           db,
		cfg:          cfg,
		jobs:         make(map[string]*Job),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		go wp.worker(i)
	}
}

// EnqueueJob adds a job to the queue
func (wp *WorkerPool) EnqueueJob(job *Job) {
	job.SetStatus(types.StatusQueued)

	wp.mu.Lock()
	wp.jobs[job.ID] = job
	wp.mu.Unlock()

	wp.jobQueue <- job
	log.Printf("Job %s enqueued (source: %s, name: %s)", job.ID, job.SourceType, job.RequestName)
}

// GetJob returns a tracked job by id, or nil.
func (wp *WorkerPool) GetJob(id string) *Job {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.jobs[id]
}

// JobProgress returns the current progress snapshots of all tracked jobs.
func (wp *WorkerPool) JobProgress() []Progress {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	snapshots := make([]Progress, 0, len(wp.jobs))
	for _, job := range wp.jobs {
		snapshots = append(snapshots, job.Snapshot())
	}
	return snapshots
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	log.Printf("Worker %d started", id)

	for job := range wp.jobQueue {
		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing job %s: %v\n%s",
						id, job.ID, r, string(debug.Stack()))
					job.Fail(fmt.Errorf("worker panic: %v", r))
					wp.cleanupTempFile(job.FilePath)
				}
			}()

			wp.ProcessJob(id, job)
		}()
	}
}

// ProcessJob runs the complete pipeline for one recording: normalize, plan
// chunk windows, extract and process every chunk in parallel, consolidate
// speakers, assemble the transcript and persist the result. A recording
// either yields a complete gap-free transcript or an explicit failure; no
// partial transcript is ever saved.
func (wp *WorkerPool) ProcessJob(workerID int, job *Job) {
	log.Printf("Worker %d: Processing job %s", workerID, job.ID)
	job.SetStatus(types.StatusProcessing)

	// Step 1: Normalize audio to 16kHz mono WAV
	job.SetStage(types.StageNormalizing)
	normalizedPath, err := wp.media.Normalize(job.FilePath, wp.cfg.TempDir)
	if err != nil {
		log.Printf("Worker %d: Audio normalization failed for job %s: %v", workerID, job.ID, err)
		job.Fail(fmt.Errorf("audio normalization failed: %v", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}
	defer wp.cleanupTempFile(normalizedPath)

	totalDuration, err := wp.media.ProbeDuration(normalizedPath)
	if err != nil {
		log.Printf("Worker %d: Duration probe failed for job %s: %v", workerID, job.ID, err)
		job.Fail(fmt.Errorf("duration probe failed: %v", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}
	log.Printf("Worker %d: Job %s duration %.2fs (%.1f min)", workerID, job.ID, totalDuration, totalDuration/60)

	// Step 2: Plan overlapping chunk windows
	job.SetStage(types.StagePlanning)
	chunks, err := chunking.Plan(totalDuration, wp.cfg.Chunking)
	if err != nil {
		job.Fail(fmt.Errorf("chunk planning failed: %w", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}
	log.Printf("Worker %d: Job %s planned %d chunks", workerID, job.ID, len(chunks))

	// Step 3: Extract the physical chunk slices
	job.SetStage(types.StageChunking)
	chunkPaths, err := wp.extractChunks(job, normalizedPath, chunks)
	defer wp.cleanupChunkFiles(chunkPaths)
	if err != nil {
		job.Fail(fmt.Errorf("chunk extraction failed: %v", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}

	// Step 4: Diarize, embed and transcribe every chunk in parallel
	job.SetStage(types.StageProcessing)
	job.SetChunkProgress(0, len(chunks))
	results := wp.processChunks(job, chunks, chunkPaths)

	// Every planned chunk must report before consolidation: full-duration
	// coverage is not possible with a hole in the timeline.
	for i := range results {
		if results[i] == nil {
			err := &consolidate.MissingChunkError{ChunkIndex: chunks[i].Index}
			log.Printf("Worker %d: Job %s failed: %v", workerID, job.ID, err)
			job.Fail(err)
			wp.cleanupTempFile(job.FilePath)
			return
		}
	}

	// Step 5: Consolidate chunk-local speakers into global identities
	job.SetStage(types.StageConsolidating)
	turnsByChunk := make(map[int][]types.LocalTurn, len(results))
	embeddingsByChunk := make(map[int]map[string]types.SpeakerEmbedding, len(results))
	segmentsByChunk := make(map[int][]types.Segment, len(results))
	language := ""
	for _, res := range results {
		turnsByChunk[res.Chunk.Index] = res.Turns
		embeddingsByChunk[res.Chunk.Index] = res.Embeddings
		segmentsByChunk[res.Chunk.Index] = res.Segments
		if language == "" {
			language = res.Language
		}
	}

	consolidated, err := consolidate.Consolidate(chunks, turnsByChunk, embeddingsByChunk, totalDuration, wp.cfg.Consolidation)
	if err != nil {
		log.Printf("Worker %d: Consolidation failed for job %s: %v", workerID, job.ID, err)
		job.Fail(fmt.Errorf("speaker consolidation failed: %w", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}
	log.Printf("Worker %d: Job %s consolidated to %d speakers, %d turns",
		workerID, job.ID, consolidated.SpeakerCount, len(consolidated.Turns))

	// Step 6: Assemble the final transcript
	job.SetStage(types.StageAssembling)
	entries := transcript.Assemble(consolidated.Turns, chunks, segmentsByChunk)

	result := &types.RecordingResult{
		JobID:        job.ID,
		Entries:      entries,
		SpeakerCount: consolidated.SpeakerCount,
		ChunkCount:   len(chunks),
		Duration:     totalDuration,
		Language:     language,
		WordCount:    transcript.WordCount(entries),
		ProcessedAt:  time.Now(),
	}

	// Step 7: Save locally
	job.SetStage(types.StageSaving)
	localPath, err := wp.localStorage.SaveTranscript(job.RequestName, result)
	if err != nil {
		log.Printf("Worker %d: Local save failed for job %s: %v", workerID, job.ID, err)
		job.Fail(fmt.Errorf("local save failed: %v", err))
		wp.cleanupTempFile(job.FilePath)
		return
	}
	result.LocalPath = localPath

	// Step 8: Upload to Google Drive (with retry)
	var driveURL string
	if wp.driveClient != nil {
		for attempt := 1; attempt <= 3; attempt++ {
			driveURL, err = wp.driveClient.Upload(job.RequestName, result)
			if err == nil {
				result.GDriveURL = driveURL
				break
			}
			log.Printf("Worker %d: Google Drive upload attempt %d/3 failed: %v", workerID, attempt, err)
			if attempt < 3 {
				time.Sleep(time.Duration(attempt*attempt) * time.Second) // Exponential backoff
			}
		}
		if err != nil {
			log.Printf("Worker %d: WARNING - Google Drive upload failed after 3 attempts, continuing with local save only", workerID)
		}
	}

	// Step 9: Save metadata to database
	if wp.db != nil {
		err = wp.db.SaveRecording(job.ID, job.RequestName, job.SourceType,
			result.GDriveURL, localPath, result.Duration, result.ChunkCount, result.SpeakerCount, result.WordCount)
		if err != nil {
			log.Printf("Worker %d: Database save failed: %v", workerID, err)
		}
	}

	// Step 10: Cleanup
	wp.cleanupTempFile(job.FilePath)

	job.Result = result
	job.SetStatus(types.StatusCompleted)
	log.Printf("Worker %d: Job %s completed (%d speakers, %d entries, local: %s, gdrive: %s)",
		workerID, job.ID, result.SpeakerCount, len(entries), localPath, driveURL)
}

// extractChunks cuts each planned chunk out of the normalized recording.
func (wp *WorkerPool) extractChunks(job *Job, normalizedPath string, chunks []types.AudioChunk) ([]string, error) {
	paths := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		chunkPath := filepath.Join(wp.cfg.TempDir, fmt.Sprintf("%s_chunk_%04d.wav", job.ID, chunk.Index))
		if err := wp.media.ExtractChunk(context.Background(), normalizedPath, chunkPath, chunk.Offset, chunk.Duration); err != nil {
			return paths, fmt.Errorf("chunk %d: %v", chunk.Index, err)
		}
		paths = append(paths, chunkPath)
	}
	return paths, nil
}

// processChunks fans chunk processing out to a bounded set of chunk workers.
// Chunks are independent, so no ordering is guaranteed between them; results
// land in their chunk's slot. A slot left nil means that chunk failed both
// its attempt and its retry.
func (wp *WorkerPool) processChunks(job *Job, chunks []types.AudioChunk, chunkPaths []string) []*types.ChunkResult {
	results := make([]*types.ChunkResult, len(chunks))

	workers := wp.cfg.ChunkWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				res, err := wp.processOneChunk(chunks[i], chunkPaths[i])
				if err != nil {
					// Chunk work is stateless and idempotent: retry once
					// from scratch before giving up.
					log.Printf("Chunk %d of job %s failed (%v), retrying", chunks[i].Index, job.ID, err)
					res, err = wp.processOneChunk(chunks[i], chunkPaths[i])
				}
				if err != nil {
					log.Printf("Chunk %d of job %s failed after retry: %v", chunks[i].Index, job.ID, err)
					continue
				}
				results[i] = res
				job.ChunkDone()
			}
		}()
	}

	for i := range chunks {
		work <- i
	}
	close(work)
	wg.Wait()

	return results
}

// processOneChunk diarizes, embeds and transcribes a single chunk under the
// per-chunk timeout.
func (wp *WorkerPool) processOneChunk(chunk types.AudioChunk, chunkPath string) (*types.ChunkResult, error) {
	ctx := context.Background()
	if wp.cfg.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.cfg.ChunkTimeout)
		defer cancel()
	}

	turns, err := wp.diarizer.Diarize(ctx, chunkPath)
	if err != nil {
		return nil, fmt.Errorf("diarization: %v", err)
	}
	for i := range turns {
		turns[i].ChunkIndex = chunk.Index
	}

	embeddings, err := wp.embeddings.ExtractSpeakerEmbeddings(ctx, chunkPath, turns)
	if err != nil {
		return nil, fmt.Errorf("embedding extraction: %v", err)
	}

	segments, language, err := wp.transcriber.Transcribe(ctx, chunkPath)
	if err != nil {
		return nil, fmt.Errorf("transcription: %v", err)
	}

	return &types.ChunkResult{
		Chunk:      chunk,
		Turns:      turns,
		Embeddings: embeddings,
		Segments:   segments,
		Language:   language,
	}, nil
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to cleanup temp file %s: %v", filePath, err)
	}
}

// cleanupChunkFiles removes extracted chunk slices.
func (wp *WorkerPool) cleanupChunkFiles(paths []string) {
	for _, p := range paths {
		wp.cleanupTempFile(p)
	}
}
