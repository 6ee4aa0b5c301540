package chunking

import (
	"fmt"
	"math"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Config holds the chunk window geometry, all in seconds.
type Config struct {
	ChunkDuration    float64
	OverlapDuration  float64
	MinChunkDuration float64
}

// ConfigurationError reports invalid planner parameters. It is fatal and
// never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid chunk configuration: %s", e.Reason)
}

// GeometryError reports a violation of the effective-window invariant
// (contiguous, non-overlapping, full coverage). It indicates a contract
// breach between planner and downstream stages and is never patched over.
type GeometryError struct {
	ChunkIndex int
	Detail     string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("chunk geometry invariant violated at chunk %d: %s", e.ChunkIndex, e.Detail)
}

// geometryEpsilon absorbs float accumulation when comparing boundaries.
const geometryEpsilon = 1e-9

// Plan partitions totalDuration into overlapping chunks.
//
// Successive chunks advance by step = chunk - overlap. Each chunk's physical
// span is [offset, min(offset+chunk+overlap, total)]; its effective window
// starts where the previous chunk's effective window ended (offset+overlap
// for every chunk after the first) and ends at min(offset+chunk, total), so
// effective windows tile [0, total) exactly.
//
// If the audio remaining before a prospective chunk is shorter than
// MinChunkDuration, or no longer than the overlap (in which case the previous
// chunk's effective window already reaches the end of the recording), no
// further chunk is emitted; the previous chunk's effective window is extended
// to the end of the recording instead. A tie at the exact boundary also
// prefers extension over a degenerate final chunk.
//
// Plan is a pure function: identical inputs yield identical output.
func Plan(totalDuration float64, cfg Config) ([]types.AudioChunk, error) {
	if err := validate(totalDuration, cfg); err != nil {
		return nil, err
	}

	step := cfg.ChunkDuration - cfg.OverlapDuration

	var chunks []types.AudioChunk
	position := 0.0
	for position < totalDuration {
		remaining := totalDuration - position
		// Stop on a short tail (too little audio to diarize reliably) and
		// also when the remainder fits inside the previous chunk's overlap:
		// that chunk's effective window already reaches the end of the
		// recording, so a further chunk would have an empty window.
		if len(chunks) > 0 &&
			(remaining < cfg.MinChunkDuration || remaining <= cfg.OverlapDuration+geometryEpsilon) {
			chunks[len(chunks)-1].EffectiveEnd = totalDuration
			return chunks, nil
		}

		index := len(chunks)
		physicalEnd := math.Min(position+cfg.ChunkDuration+cfg.OverlapDuration, totalDuration)
		effectiveStart := 0.0
		if index > 0 {
			effectiveStart = chunks[index-1].EffectiveEnd
		}
		effectiveEnd := math.Min(position+cfg.ChunkDuration, totalDuration)

		chunks = append(chunks, types.AudioChunk{
			Index:          index,
			Offset:         position,
			Duration:       physicalEnd - position,
			EffectiveStart: effectiveStart,
			EffectiveEnd:   effectiveEnd,
		})

		position += step
	}

	return chunks, nil
}

func validate(totalDuration float64, cfg Config) error {
	switch {
	case totalDuration <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("total duration must be positive, got %g", totalDuration)}
	case cfg.ChunkDuration <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("chunk duration must be positive, got %g", cfg.ChunkDuration)}
	case cfg.OverlapDuration <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("overlap duration must be positive, got %g", cfg.OverlapDuration)}
	case cfg.OverlapDuration >= cfg.ChunkDuration:
		return &ConfigurationError{Reason: fmt.Sprintf("overlap (%g) must be smaller than chunk duration (%g)",
			cfg.OverlapDuration, cfg.ChunkDuration)}
	case cfg.MinChunkDuration <= 0:
		return &ConfigurationError{Reason: fmt.Sprintf("minimum chunk duration must be positive, got %g", cfg.MinChunkDuration)}
	}
	return nil
}

// ValidateGeometry checks the effective-window invariant on a planned chunk
// sequence: windows are contiguous, the first starts at 0, the last ends at
// totalDuration, and every effective window lies within its physical span's
// start. Downstream consolidation calls this before trusting the geometry.
func ValidateGeometry(chunks []types.AudioChunk, totalDuration float64) error {
	if len(chunks) == 0 {
		return &GeometryError{ChunkIndex: 0, Detail: "no chunks planned"}
	}

	if math.Abs(chunks[0].EffectiveStart) > geometryEpsilon {
		return &GeometryError{ChunkIndex: 0,
			Detail: fmt.Sprintf("first effective window starts at %g, want 0", chunks[0].EffectiveStart)}
	}

	for i, c := range chunks {
		if c.Index != i {
			return &GeometryError{ChunkIndex: i, Detail: fmt.Sprintf("chunk index %d out of order", c.Index)}
		}
		if c.EffectiveEnd <= c.EffectiveStart {
			return &GeometryError{ChunkIndex: i,
				Detail: fmt.Sprintf("empty effective window [%g, %g]", c.EffectiveStart, c.EffectiveEnd)}
		}
		if c.EffectiveStart < c.Offset-geometryEpsilon {
			return &GeometryError{ChunkIndex: i,
				Detail: fmt.Sprintf("effective start %g precedes physical offset %g", c.EffectiveStart, c.Offset)}
		}
		if i > 0 && math.Abs(c.EffectiveStart-chunks[i-1].EffectiveEnd) > geometryEpsilon {
			return &GeometryError{ChunkIndex: i,
				Detail: fmt.Sprintf("effective start %g does not meet previous effective end %g",
					c.EffectiveStart, chunks[i-1].EffectiveEnd)}
		}
	}

	last := chunks[len(chunks)-1]
	if math.Abs(last.EffectiveEnd-totalDuration) > geometryEpsilon {
		return &GeometryError{ChunkIndex: last.Index,
			Detail: fmt.Sprintf("last effective window ends at %g, want %g", last.EffectiveEnd, totalDuration)}
	}

	return nil
}
