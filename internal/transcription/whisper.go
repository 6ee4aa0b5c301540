package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// WhisperTranscriber wraps Python's OpenAI Whisper for per-chunk transcription
type WhisperTranscriber struct {
	modelName  string
	whisperCmd string
	tempDir    string
}

// NewWhisperTranscriber creates a new transcriber using Python Whisper
func NewWhisperTranscriber(modelPath, tempDir string) (*WhisperTranscriber, error) {
	// For Python Whisper, we use the model name instead of path
	// Extract model name from path (e.g., "ggml-small.bin" -> "small")
	modelName := "small" // Default to small

	if strings.Contains(modelPath, "tiny") {
		modelName = "tiny"
	} else if strings.Contains(modelPath, "base") {
		modelName = "base"
	} else if strings.Contains(modelPath, "small") {
		modelName = "small"
	} else if strings.Contains(modelPath, "medium") {
		modelName = "medium"
	} else if strings.Contains(modelPath, "large") {
		modelName = "large"
	}

	log.Printf("Initializing Python Whisper with model: %s", modelName)
	log.Printf("Note: Whisper availability will be verified on first transcription")

	return &WhisperTranscriber{
		modelName:  modelName,
		whisperCmd: "python",
		tempDir:    tempDir,
	}, nil
}

// Transcribe processes one chunk file and returns its timestamped segments
// (chunk-local seconds) and the detected language. Chunks are independent, so
// concurrent calls are safe; the chunk worker count bounds model contention.
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.Segment, string, error) {
	log.Printf("Transcribing with Python Whisper: %s", audioPath)

	// Per-call output directory so parallel chunks don't clobber each other
	outputDir, err := os.MkdirTemp(wt.tempDir, "whisper_output_")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create whisper output dir: %v", err)
	}
	defer os.RemoveAll(outputDir)

	absAudioPath, err := filepath.Abs(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path: %v", err)
	}

	cmd := exec.CommandContext(ctx, wt.whisperCmd, "-m", "whisper",
		absAudioPath,
		"--model", wt.modelName,
		"--output_dir", outputDir,
		"--output_format", "json", // Get JSON for segments
		"--fp16", "False", // Disable fp16 for CPU compatibility
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, "", fmt.Errorf("whisper transcription failed: %v\nOutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, baseName+".json")

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read whisper output: %v", err)
	}

	var whisperOutput WhisperOutput
	if err := json.Unmarshal(jsonData, &whisperOutput); err != nil {
		return nil, "", fmt.Errorf("failed to parse whisper JSON: %v", err)
	}

	segments := make([]types.Segment, len(whisperOutput.Segments))
	for i, seg := range whisperOutput.Segments {
		segments[i] = types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	log.Printf("Transcription completed: %s, %d segments", audioPath, len(segments))
	return segments, whisperOutput.Language, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
