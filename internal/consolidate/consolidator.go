package consolidate

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/chunking"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// Config holds the consolidation tunables. Both are externally supplied so
// they can be tuned per recording quality.
type Config struct {
	// SimilarityThreshold is the minimum cosine similarity at which a
	// chunk-local speaker adopts an existing global identity.
	SimilarityThreshold float64
	// SilenceMergeThreshold is the maximum gap in seconds across a chunk
	// seam below which adjacent same-speaker turns are merged.
	SilenceMergeThreshold float64
}

// MissingChunkError reports that a planned chunk has no diarization result.
// Consolidation cannot proceed without full coverage; the whole recording
// must be retried.
type MissingChunkError struct {
	ChunkIndex int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("no diarization result for chunk %d, cannot consolidate", e.ChunkIndex)
}

// Result is the consolidated output: globally-timed, globally-labeled turns
// plus the final speaker registry and the local-to-global label mapping.
type Result struct {
	Turns        []types.GlobalTurn
	SpeakerCount int
	Mapping      map[types.SpeakerKey]int
}

// Consolidate merges independently diarized chunks into one globally
// consistent timeline with stable speaker identities.
//
// Chunks are processed strictly in index order: global-id assignment for
// chunk n depends on the registry state built from chunks 0..n-1, and the
// earliest chunk's speakers claim the lowest ids. For each chunk, local turns
// are shifted by the chunk offset and clipped to the chunk's effective
// window, which is what prevents speech in a seam overlap from appearing
// twice. Identity assignment is greedy nearest-embedding matching with no
// retroactive re-clustering; see the registry for the lifecycle rules.
func Consolidate(
	chunks []types.AudioChunk,
	turnsByChunk map[int][]types.LocalTurn,
	embeddingsByChunk map[int]map[string]types.SpeakerEmbedding,
	totalDuration float64,
	cfg Config,
) (*Result, error) {
	if err := chunking.ValidateGeometry(chunks, totalDuration); err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if _, ok := turnsByChunk[chunk.Index]; !ok {
			return nil, &MissingChunkError{ChunkIndex: chunk.Index}
		}
	}

	registry := NewRegistry()
	mapping := make(map[types.SpeakerKey]int)
	var globalTurns []types.GlobalTurn

	for _, chunk := range chunks {
		clipped := clipTurns(chunk, turnsByChunk[chunk.Index])
		if len(clipped) == 0 {
			continue
		}

		assignment := assignSpeakers(chunk, clipped, embeddingsByChunk[chunk.Index], registry, cfg.SimilarityThreshold)
		for key, id := range assignment.ids {
			mapping[key] = id
		}

		for _, ct := range clipped {
			key := types.SpeakerKey{ChunkIndex: chunk.Index, Label: ct.label}
			globalTurns = append(globalTurns, types.GlobalTurn{
				Start:         ct.start,
				End:           ct.end,
				SpeakerID:     assignment.ids[key],
				LowConfidence: assignment.lowConfidence[key],
			})
		}
	}

	sort.SliceStable(globalTurns, func(i, j int) bool {
		return globalTurns[i].Start < globalTurns[j].Start
	})
	globalTurns = coalesceSeams(globalTurns, cfg.SilenceMergeThreshold)

	return &Result{
		Turns:        globalTurns,
		SpeakerCount: registry.Count(),
		Mapping:      mapping,
	}, nil
}

// clippedTurn is a local turn shifted to global time and clipped to the
// chunk's effective window.
type clippedTurn struct {
	label string
	start float64
	end   float64
}

// clipTurns shifts each local turn by the chunk offset and clips it to
// [effective_start, effective_end]. Turns fully outside the effective window
// are dropped entirely.
func clipTurns(chunk types.AudioChunk, turns []types.LocalTurn) []clippedTurn {
	var out []clippedTurn
	for _, t := range turns {
		start := math.Max(chunk.Offset+t.Start, chunk.EffectiveStart)
		end := math.Min(chunk.Offset+t.End, chunk.EffectiveEnd)
		if end <= start {
			continue
		}
		out = append(out, clippedTurn{label: t.Speaker, start: start, end: end})
	}
	return out
}

// speakerAssignment maps each surviving chunk-local speaker to a global id.
type speakerAssignment struct {
	ids           map[types.SpeakerKey]int
	lowConfidence map[types.SpeakerKey]bool
}

// assignSpeakers resolves every chunk-local speaker with a surviving turn to
// a global id.
//
// Speakers with embeddings are matched greedily against the registry in
// descending best-similarity order. If two local speakers in the same chunk
// best-match the same global id, the higher similarity wins; the other is
// forced onto a new id even above the threshold, since two simultaneous
// local speakers cannot be one person. A speaker with no embedding inherits
// the id of the chunk's only other resolved speaker when there is exactly
// one; otherwise it gets a fresh id flagged low-confidence.
func assignSpeakers(
	chunk types.AudioChunk,
	clipped []clippedTurn,
	embeddings map[string]types.SpeakerEmbedding,
	registry *Registry,
	threshold float64,
) speakerAssignment {
	labels := survivingLabels(clipped)

	type candidate struct {
		label   string
		vector  []float64
		matchID int
		sim     float64
		matched bool
	}

	var embedded []candidate
	var unembedded []string
	for _, label := range labels {
		emb, ok := embeddings[label]
		if !ok {
			unembedded = append(unembedded, label)
			continue
		}
		id, sim, found := registry.BestMatch(emb.Vector)
		embedded = append(embedded, candidate{
			label:   label,
			vector:  emb.Vector,
			matchID: id,
			sim:     sim,
			matched: found && sim >= threshold,
		})
	}

	// Strongest matches claim their global id first; a weaker speaker whose
	// best match is already taken in this chunk is forced to a new identity.
	sort.SliceStable(embedded, func(i, j int) bool {
		return embedded[i].sim > embedded[j].sim
	})

	assignment := speakerAssignment{
		ids:           make(map[types.SpeakerKey]int, len(labels)),
		lowConfidence: make(map[types.SpeakerKey]bool, len(labels)),
	}
	taken := map[int]bool{}
	for _, c := range embedded {
		key := types.SpeakerKey{ChunkIndex: chunk.Index, Label: c.label}
		if c.matched && !taken[c.matchID] {
			assignment.ids[key] = c.matchID
			taken[c.matchID] = true
			continue
		}
		id := registry.Add(c.vector)
		assignment.ids[key] = id
		taken[id] = true
	}

	for _, label := range unembedded {
		key := types.SpeakerKey{ChunkIndex: chunk.Index, Label: label}
		if len(embedded) == 1 {
			// Single-speaker chunk apart from this label: inherit its id.
			inherited := assignment.ids[types.SpeakerKey{ChunkIndex: chunk.Index, Label: embedded[0].label}]
			assignment.ids[key] = inherited
			log.Printf("Chunk %d speaker %s has no embedding, inheriting global speaker %d",
				chunk.Index, label, inherited)
			continue
		}
		id := registry.Add(nil)
		assignment.ids[key] = id
		assignment.lowConfidence[key] = true
		log.Printf("Chunk %d speaker %s has no embedding, assigned new global speaker %d (low confidence)",
			chunk.Index, label, id)
	}

	return assignment
}

// survivingLabels returns the distinct labels of the clipped turns in first
// appearance order, which keeps assignment deterministic.
func survivingLabels(clipped []clippedTurn) []string {
	seen := map[string]struct{}{}
	var labels []string
	for _, ct := range clipped {
		if _, ok := seen[ct.label]; ok {
			continue
		}
		seen[ct.label] = struct{}{}
		labels = append(labels, ct.label)
	}
	return labels
}

// coalesceSeams merges immediately adjacent turns with the same global
// speaker whose gap is below the silence threshold. The merge applies to
// every adjacent pair, not only pairs straddling a chunk seam: a
// sub-threshold gap inside a single chunk is the same spurious split as one
// produced by clipping at a seam, and both collapse into one turn. Input
// must be sorted by start.
func coalesceSeams(turns []types.GlobalTurn, silenceThreshold float64) []types.GlobalTurn {
	if len(turns) < 2 {
		return turns
	}

	out := make([]types.GlobalTurn, 0, len(turns))
	current := turns[0]
	for _, next := range turns[1:] {
		gap := next.Start - current.End
		if next.SpeakerID == current.SpeakerID && gap <= silenceThreshold {
			if next.End > current.End {
				current.End = next.End
			}
			current.LowConfidence = current.LowConfidence || next.LowConfidence
			continue
		}
		out = append(out, current)
		current = next
	}
	out = append(out, current)
	return out
}
