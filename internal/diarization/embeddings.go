package diarization

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strconv"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Embedder computes a voice embedding vector for one span of a chunk file.
// Spans are chunk-local seconds. Implementations wrap an external speaker
// embedding model.
type Embedder interface {
	Embed(ctx context.Context, audioPath string, start, end float64) ([]float64, error)
}

// Extractor derives one duration-weighted representative embedding per
// chunk-local speaker from that speaker's turns.
type Extractor struct {
	embedder        Embedder
	minTurnDuration float64
}

// NewExtractor creates an extractor. Turns shorter than minTurnDuration
// seconds are excluded as unreliable for embedding.
func NewExtractor(embedder Embedder, minTurnDuration float64) *Extractor {
	return &Extractor{
		embedder:        embedder,
		minTurnDuration: minTurnDuration,
	}
}

// ExtractSpeakerEmbeddings groups turns by chunk-local speaker label and
// combines each group's per-turn vectors into one representative vector via a
// duration-weighted mean. Turns below the minimum duration are skipped, and a
// per-turn extraction failure is logged and skipped rather than aborting the
// chunk. Speakers with no usable turn are omitted from the result; callers
// must treat a missing label as a valid outcome, not an error.
func (e *Extractor) ExtractSpeakerEmbeddings(ctx context.Context, audioPath string, turns []types.LocalTurn) (map[string]types.SpeakerEmbedding, error) {
	grouped := map[string][]types.LocalTurn{}
	var order []string
	for _, t := range turns {
		if _, seen := grouped[t.Speaker]; !seen {
			order = append(order, t.Speaker)
		}
		grouped[t.Speaker] = append(grouped[t.Speaker], t)
	}

	result := make(map[string]types.SpeakerEmbedding, len(grouped))
	for _, label := range order {
		var vectors [][]float64
		var durations []float64

		for _, t := range grouped[label] {
			if t.Duration() < e.minTurnDuration {
				continue
			}
			vec, err := e.embedder.Embed(ctx, audioPath, t.Start, t.End)
			if err != nil {
				log.Printf("Embedding extraction failed for %s turn %.2f-%.2f in %s: %v, skipping",
					label, t.Start, t.End, audioPath, err)
				continue
			}
			vectors = append(vectors, vec)
			durations = append(durations, t.Duration())
		}

		if len(vectors) == 0 {
			// All turns too short or all extractions failed.
			continue
		}

		vector, err := weightedMean(vectors, durations)
		if err != nil {
			return nil, fmt.Errorf("failed to combine embeddings for speaker %s: %v", label, err)
		}

		totalDuration := 0.0
		for _, d := range durations {
			totalDuration += d
		}

		chunkIndex := grouped[label][0].ChunkIndex
		result[label] = types.SpeakerEmbedding{
			ChunkIndex:    chunkIndex,
			Label:         label,
			Vector:        vector,
			TotalDuration: totalDuration,
			SegmentCount:  len(vectors),
		}
	}

	return result, nil
}

// weightedMean combines vectors component-wise, weighting each by its turn's
// duration normalized so the weights sum to 1.
func weightedMean(vectors [][]float64, durations []float64) ([]float64, error) {
	dim := len(vectors[0])
	total := 0.0
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(v), dim)
		}
		total += durations[i]
	}
	if total <= 0 {
		return nil, fmt.Errorf("non-positive total duration %g", total)
	}

	mean := make([]float64, dim)
	for i, v := range vectors {
		w := durations[i] / total
		for j, x := range v {
			mean[j] += w * x
		}
	}
	return mean, nil
}

// SpeechBrainEmbedder computes voice embeddings by invoking the speechbrain
// embedding script as a subprocess, one span at a time.
type SpeechBrainEmbedder struct {
	pythonCmd  string
	scriptPath string
	device     string
}

// NewSpeechBrainEmbedder creates an embedder that shells out to the given
// embedding script.
func NewSpeechBrainEmbedder(pythonCmd, scriptPath, device string) *SpeechBrainEmbedder {
	if pythonCmd == "" {
		pythonCmd = "python"
	}
	if device == "" {
		device = "cpu"
	}
	return &SpeechBrainEmbedder{
		pythonCmd:  pythonCmd,
		scriptPath: scriptPath,
		device:     device,
	}
}

// embedOutput matches the embedding script's JSON output.
type embedOutput struct {
	Vector []float64 `json:"vector"`
	Error  string    `json:"error,omitempty"`
}

// Embed runs the embedding model over [start, end] of the chunk file.
func (s *SpeechBrainEmbedder) Embed(ctx context.Context, audioPath string, start, end float64) ([]float64, error) {
	cmd := exec.CommandContext(ctx, s.pythonCmd,
		s.scriptPath,
		"--wav", audioPath,
		"--start", strconv.FormatFloat(start, 'f', -1, 64),
		"--end", strconv.FormatFloat(end, 'f', -1, 64),
		"--device", s.device,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("embedding subprocess failed: %v", err)
	}

	var parsed embedOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding output: %v", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embedding error: %s", parsed.Error)
	}
	if len(parsed.Vector) == 0 {
		return nil, fmt.Errorf("embedding script returned empty vector")
	}

	return parsed.Vector, nil
}
