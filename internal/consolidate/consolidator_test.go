package consolidate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/chunking"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var consolidateCfg = Config{
	SimilarityThreshold:   0.8,
	SilenceMergeThreshold: 1.0,
}

// twoChunks plans the standard 600s recording: chunk 0 effective [0,480],
// chunk 1 offset 450 effective [480,600].
func twoChunks(t *testing.T) []types.AudioChunk {
	t.Helper()
	chunks, err := chunking.Plan(600, chunking.Config{
		ChunkDuration:    480,
		OverlapDuration:  30,
		MinChunkDuration: 60,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	return chunks
}

func embeddings(chunkIndex int, byLabel map[string][]float64) map[string]types.SpeakerEmbedding {
	out := make(map[string]types.SpeakerEmbedding, len(byLabel))
	for label, vec := range byLabel {
		out[label] = types.SpeakerEmbedding{
			ChunkIndex: chunkIndex, Label: label, Vector: vec,
			TotalDuration: 10, SegmentCount: 2,
		}
	}
	return out
}

func TestConsolidate_SameVoiceAcrossChunks(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"}},
		1: {{ChunkIndex: 1, Start: 40, End: 100, Speaker: "SPEAKER_00"}}, // global [490,550]
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: embeddings(1, map[string][]float64{"SPEAKER_00": {0.99, 0.01}}),
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SpeakerCount)
	require.Len(t, result.Turns, 2)
	assert.Equal(t, 0, result.Turns[0].SpeakerID)
	assert.Equal(t, 0, result.Turns[1].SpeakerID)
	assert.Equal(t, 0, result.Mapping[types.SpeakerKey{ChunkIndex: 1, Label: "SPEAKER_00"}])
}

func TestConsolidate_DistinctVoicesGetDistinctIDs(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"}},
		1: {{ChunkIndex: 1, Start: 40, End: 100, Speaker: "SPEAKER_00"}},
	}
	// Orthogonal vectors: similarity 0, well below threshold.
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: embeddings(1, map[string][]float64{"SPEAKER_00": {0, 1}}),
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SpeakerCount)
	assert.Equal(t, 0, result.Mapping[types.SpeakerKey{ChunkIndex: 0, Label: "SPEAKER_00"}])
	assert.Equal(t, 1, result.Mapping[types.SpeakerKey{ChunkIndex: 1, Label: "SPEAKER_00"}])
}

func TestConsolidate_ClipsTurnsToEffectiveWindows(t *testing.T) {
	chunks := twoChunks(t)

	// Both chunks hear the same speech around the seam at 480. Chunk 0's turn
	// runs past its effective end; chunk 1's turn starts before its effective
	// start. After clipping, the two halves meet at exactly 480.
	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 470, End: 500, Speaker: "SPEAKER_00"}},
		1: {{ChunkIndex: 1, Start: 20, End: 50, Speaker: "SPEAKER_00"}}, // global [470,500]
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: embeddings(1, map[string][]float64{"SPEAKER_00": {1, 0}}),
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	// Same speaker, zero gap at the seam: coalesced into one turn.
	require.Len(t, result.Turns, 1)
	assert.InDelta(t, 470, result.Turns[0].Start, 1e-9)
	assert.InDelta(t, 500, result.Turns[0].End, 1e-9)
	assert.Equal(t, 1, result.SpeakerCount)
}

func TestConsolidate_DropsTurnsOutsideEffectiveWindow(t *testing.T) {
	chunks := twoChunks(t)

	// Chunk 1's turn ends before its effective window begins; only chunk 0
	// may report that speech.
	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 455, End: 470, Speaker: "SPEAKER_00"}},
		1: {{ChunkIndex: 1, Start: 5, End: 20, Speaker: "SPEAKER_00"}}, // global [455,470]
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: embeddings(1, map[string][]float64{"SPEAKER_00": {1, 0}}),
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	require.Len(t, result.Turns, 1)
	assert.InDelta(t, 455, result.Turns[0].Start, 1e-9)
	assert.InDelta(t, 470, result.Turns[0].End, 1e-9)
	// Chunk 1's speaker had no surviving turn, so it claimed no identity.
	assert.Equal(t, 1, result.SpeakerCount)
}

func TestConsolidate_SameChunkTieBreak(t *testing.T) {
	chunks := twoChunks(t)

	// Chunk 1 has two local speakers whose embeddings both best-match the
	// single registered identity. The closer one wins; the other is forced
	// onto a new id even though it clears the threshold.
	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"}},
		1: {
			{ChunkIndex: 1, Start: 40, End: 60, Speaker: "SPEAKER_00"},
			{ChunkIndex: 1, Start: 70, End: 90, Speaker: "SPEAKER_01"},
		},
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: embeddings(1, map[string][]float64{
			"SPEAKER_00": {1, 0},     // similarity 1.0
			"SPEAKER_01": {0.9, 0.3}, // high similarity, but loses the tie
		}),
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SpeakerCount)
	assert.Equal(t, 0, result.Mapping[types.SpeakerKey{ChunkIndex: 1, Label: "SPEAKER_00"}])
	assert.Equal(t, 1, result.Mapping[types.SpeakerKey{ChunkIndex: 1, Label: "SPEAKER_01"}])
}

func TestConsolidate_UnembeddedSpeakerInheritsSingleNeighbor(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {
			{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"},
			{ChunkIndex: 0, Start: 150, End: 160, Speaker: "SPEAKER_01"}, // no embedding
		},
		1: {},
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: {},
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SpeakerCount)
	assert.Equal(t, 0, result.Mapping[types.SpeakerKey{ChunkIndex: 0, Label: "SPEAKER_01"}])
	for _, turn := range result.Turns {
		assert.False(t, turn.LowConfidence)
	}
}

func TestConsolidate_UnembeddedSpeakerAmongManyIsLowConfidence(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {
			{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"},
			{ChunkIndex: 0, Start: 110, End: 140, Speaker: "SPEAKER_01"},
			{ChunkIndex: 0, Start: 200, End: 210, Speaker: "SPEAKER_02"}, // no embedding
		},
		1: {},
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{
			"SPEAKER_00": {1, 0},
			"SPEAKER_01": {0, 1},
		}),
		1: {},
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	assert.Equal(t, 3, result.SpeakerCount)

	var lowConfidence int
	for _, turn := range result.Turns {
		if turn.LowConfidence {
			lowConfidence++
			assert.Equal(t, result.Mapping[types.SpeakerKey{ChunkIndex: 0, Label: "SPEAKER_02"}], turn.SpeakerID)
		}
	}
	assert.Equal(t, 1, lowConfidence)
}

func TestConsolidate_CoalesceRespectsSilenceThreshold(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {
			{ChunkIndex: 0, Start: 10, End: 20, Speaker: "SPEAKER_00"},
			{ChunkIndex: 0, Start: 20.5, End: 30, Speaker: "SPEAKER_00"}, // gap 0.5 <= 1.0: merge
			{ChunkIndex: 0, Start: 40, End: 50, Speaker: "SPEAKER_00"},   // gap 10: keep separate
		},
		1: {},
	}
	embs := map[int]map[string]types.SpeakerEmbedding{
		0: embeddings(0, map[string][]float64{"SPEAKER_00": {1, 0}}),
		1: {},
	}

	result, err := Consolidate(chunks, turns, embs, 600, consolidateCfg)
	require.NoError(t, err)

	require.Len(t, result.Turns, 2)
	assert.InDelta(t, 10, result.Turns[0].Start, 1e-9)
	assert.InDelta(t, 30, result.Turns[0].End, 1e-9)
	assert.InDelta(t, 40, result.Turns[1].Start, 1e-9)
}

func TestConsolidate_MissingChunkFails(t *testing.T) {
	chunks := twoChunks(t)

	turns := map[int][]types.LocalTurn{
		0: {{ChunkIndex: 0, Start: 10, End: 100, Speaker: "SPEAKER_00"}},
		// chunk 1 never reported
	}

	_, err := Consolidate(chunks, turns, nil, 600, consolidateCfg)
	require.Error(t, err)

	var missing *MissingChunkError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, 1, missing.ChunkIndex)
}

func TestConsolidate_RejectsBrokenGeometry(t *testing.T) {
	chunks := twoChunks(t)
	chunks[1].EffectiveStart += 2 // hole in the timeline

	turns := map[int][]types.LocalTurn{0: {}, 1: {}}

	_, err := Consolidate(chunks, turns, nil, 600, consolidateCfg)
	require.Error(t, err)

	var geoErr *chunking.GeometryError
	assert.True(t, errors.As(err, &geoErr))
}

func TestRegistry_BestMatchSkipsPlaceholders(t *testing.T) {
	r := NewRegistry()
	placeholder := r.Add(nil)
	real := r.Add([]float64{1, 0})

	id, sim, ok := r.BestMatch([]float64{1, 0})
	require.True(t, ok)
	assert.Equal(t, real, id)
	assert.InDelta(t, 1.0, sim, 1e-9)
	assert.NotEqual(t, placeholder, id)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_BestMatchEmpty(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.BestMatch([]float64{1, 0})
	assert.False(t, ok)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{2, 0}, []float64{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}
