package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// LocalStorage handles saving transcripts to the local filesystem
type LocalStorage struct {
	outputDir string
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
	}
}

// SaveTranscript saves the speaker-attributed transcript and metadata to
// local disk and returns the transcript path.
func (ls *LocalStorage) SaveTranscript(requestName string, result *types.RecordingResult) (string, error) {
	// Create dated directory structure: outputs/2025/01/23/
	now := time.Now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %v", err)
	}

	// Generate filename: 20250123_143022_weekly_standup.txt
	timestamp := now.Format("20060102_150405")
	baseFilename := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(requestName))

	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	metaPath := filepath.Join(dateDir, baseFilename+"_meta.json")

	// Save transcript text
	if err := os.WriteFile(txtPath, []byte(FormatTranscript(result.Entries)), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %v", err)
	}

	// Save metadata JSON
	metadata := map[string]interface{}{
		"job_id":           result.JobID,
		"request_name":     requestName,
		"duration_seconds": result.Duration,
		"chunk_count":      result.ChunkCount,
		"speaker_count":    result.SpeakerCount,
		"word_count":       result.WordCount,
		"language":         result.Language,
		"created_at":       result.ProcessedAt,
		"entries":          result.Entries,
		"local_path":       txtPath,
		"gdrive_url":       result.GDriveURL,
	}

	metaJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %v", err)
	}

	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %v", err)
	}

	return txtPath, nil
}

// FormatTranscript renders transcript entries as the plain-text form:
//
//	[00:01:23 --> 00:01:45] [SPEAKER_00] Good morning everyone.
//
// Low-confidence speaker attributions are marked with a trailing (?) on the
// speaker tag.
func FormatTranscript(entries []types.TranscriptEntry) string {
	var b strings.Builder
	for _, e := range entries {
		tag := fmt.Sprintf("SPEAKER_%02d", e.SpeakerID)
		if e.LowConfidence {
			tag += " (?)"
		}
		fmt.Fprintf(&b, "[%s --> %s] [%s] %s\n",
			formatTimestamp(e.Start), formatTimestamp(e.End), tag, e.Text)
	}
	return b.String()
}

// formatTimestamp renders seconds as HH:MM:SS.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	result := filepath.Base(name)
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	for _, ch := range invalid {
		result = strings.ReplaceAll(result, ch, "_")
	}
	if len(result) > 100 {
		result = result[:100] // Limit length
	}
	return result
}
