package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NormalizeAudio converts any audio or video file to 16kHz mono WAV, the
// format the diarization and embedding models expect.
func NormalizeAudio(inputPath, tempDir string) (string, error) {
	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	cmd := exec.Command("ffmpeg",
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-vn", // Drop any video track
		"-y",  // Overwrite output
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// ffprobeFormat matches the format block of ffprobe's JSON output.
type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the audio duration in seconds using ffprobe.
func ProbeDuration(audioPath string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "json",
		audioPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %v", err)
	}

	return ParseProbeOutput(output)
}

// ParseProbeOutput extracts the duration from ffprobe JSON output.
func ParseProbeOutput(output []byte) (float64, error) {
	var parsed ffprobeFormat
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %v", err)
	}

	duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q in ffprobe output: %v", parsed.Format.Duration, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %g in ffprobe output", duration)
	}
	return duration, nil
}

// ExtractChunk cuts one chunk slice out of the normalized recording, keeping
// the 16kHz mono format.
func ExtractChunk(ctx context.Context, audioPath, chunkPath string, offset, duration float64) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", audioPath,
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-t", strconv.FormatFloat(duration, 'f', 3, 64),
		"-ar", "16000",
		"-ac", "1",
		chunkPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg chunk extraction failed: %v\nOutput: %s", err, string(output))
	}
	return nil
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".mp4", ".mkv", ".opus"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// FFmpegProcessor bundles the ffmpeg/ffprobe operations behind one value so
// the worker pool can take them as a dependency.
type FFmpegProcessor struct{}

func (FFmpegProcessor) Normalize(inputPath, tempDir string) (string, error) {
	return NormalizeAudio(inputPath, tempDir)
}

func (FFmpegProcessor) ProbeDuration(audioPath string) (float64, error) {
	return ProbeDuration(audioPath)
}

func (FFmpegProcessor) ExtractChunk(ctx context.Context, audioPath, chunkPath string, offset, duration float64) error {
	return ExtractChunk(ctx, audioPath, chunkPath, offset, duration)
}
