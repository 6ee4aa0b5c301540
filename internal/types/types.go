package types

import "time"

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Source type constants
const (
	SourceUpload  = "upload"
	SourceGDrive  = "gdrive"
	SourceCapture = "capture"
)

// Pipeline stage constants (reported on the job status stream)
const (
	StageNormalizing   = "normalizing"
	StagePlanning      = "planning"
	StageChunking      = "chunking"
	StageProcessing    = "processing_chunks"
	StageConsolidating = "consolidating"
	StageAssembling    = "assembling"
	StageSaving        = "saving"
)

// AudioChunk describes one planned window of the recording. Offset/Duration
// describe the physical slice extracted from the source; EffectiveStart/End
// describe the sub-interval for which this chunk is the authoritative source
// of truth. Effective windows are contiguous across chunks and cover the
// whole recording with no overlap.
type AudioChunk struct {
	Index          int     `json:"chunk_index"`
	Offset         float64 `json:"offset"`
	Duration       float64 `json:"duration"`
	EffectiveStart float64 `json:"effective_start"`
	EffectiveEnd   float64 `json:"effective_end"`
}

// LocalTurn is a contiguous speech span detected inside one chunk. Start/End
// are chunk-local seconds; Speaker is a chunk-local label with no meaning
// outside this chunk.
type LocalTurn struct {
	ChunkIndex int     `json:"chunk_index"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Speaker    string  `json:"speaker"`
}

// Duration returns the turn length in seconds.
func (t LocalTurn) Duration() float64 {
	return t.End - t.Start
}

// SpeakerKey identifies a chunk-local speaker. It is deliberately a distinct
// type from the global speaker id so the two can never be conflated.
type SpeakerKey struct {
	ChunkIndex int
	Label      string
}

// SpeakerEmbedding is a duration-weighted representative voice vector for one
// chunk-local speaker.
type SpeakerEmbedding struct {
	ChunkIndex    int       `json:"chunk_index"`
	Label         string    `json:"speaker"`
	Vector        []float64 `json:"vector"`
	TotalDuration float64   `json:"total_duration"`
	SegmentCount  int       `json:"segment_count"`
}

// GlobalTurn is a LocalTurn after offset-shift, effective-window clipping and
// speaker-id resolution. LowConfidence marks turns whose speaker assignment
// had no embedding to match on.
type GlobalTurn struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	SpeakerID     int     `json:"speaker_id"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Segment represents a timestamped segment of transcription (chunk-local
// until shifted by the assembler).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptEntry is one line of the final transcript: a globally-timed,
// speaker-attributed turn with its recognized text.
type TranscriptEntry struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	SpeakerID     int     `json:"speaker_id"`
	Text          string  `json:"text"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// ChunkResult collects everything one chunk's processing produced.
type ChunkResult struct {
	Chunk      AudioChunk
	Turns      []LocalTurn
	Embeddings map[string]SpeakerEmbedding
	Segments   []Segment
	Language   string
}

// RecordingResult represents the finished pipeline output for one recording.
type RecordingResult struct {
	JobID        string
	Entries      []TranscriptEntry
	SpeakerCount int
	ChunkCount   int
	Duration     float64
	Language     string
	WordCount    int
	ProcessedAt  time.Time
	LocalPath    string
	GDriveURL    string
}
