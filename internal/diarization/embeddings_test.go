package diarization

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// fakeEmbedder returns a canned vector per turn span, keyed by start time.
type fakeEmbedder struct {
	vectors map[float64][]float64
	fail    map[float64]bool
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, start, _ float64) ([]float64, error) {
	f.calls++
	if f.fail[start] {
		return nil, fmt.Errorf("model crashed")
	}
	vec, ok := f.vectors[start]
	if !ok {
		return nil, fmt.Errorf("no canned vector for start %g", start)
	}
	return vec, nil
}

func TestExtractSpeakerEmbeddings_DurationWeightedMean(t *testing.T) {
	// A 2s turn and an 8s turn: the longer turn dominates 80/20.
	fake := &fakeEmbedder{vectors: map[float64][]float64{
		10: {1, 0},
		20: {0, 1},
	}}
	extractor := NewExtractor(fake, 0.5)

	turns := []types.LocalTurn{
		{ChunkIndex: 3, Start: 10, End: 12, Speaker: "SPEAKER_00"},
		{ChunkIndex: 3, Start: 20, End: 28, Speaker: "SPEAKER_00"},
	}

	result, err := extractor.ExtractSpeakerEmbeddings(context.Background(), "chunk.wav", turns)
	require.NoError(t, err)
	require.Contains(t, result, "SPEAKER_00")

	emb := result["SPEAKER_00"]
	assert.Equal(t, 3, emb.ChunkIndex)
	assert.Equal(t, "SPEAKER_00", emb.Label)
	assert.Equal(t, 2, emb.SegmentCount)
	assert.InDelta(t, 10.0, emb.TotalDuration, 1e-9)
	require.Len(t, emb.Vector, 2)
	assert.InDelta(t, 0.2, emb.Vector[0], 1e-9)
	assert.InDelta(t, 0.8, emb.Vector[1], 1e-9)
}

func TestExtractSpeakerEmbeddings_SkipsShortTurns(t *testing.T) {
	fake := &fakeEmbedder{vectors: map[float64][]float64{
		10: {1, 0},
	}}
	extractor := NewExtractor(fake, 0.5)

	turns := []types.LocalTurn{
		{Start: 10, End: 12, Speaker: "SPEAKER_00"},
		{Start: 30, End: 30.3, Speaker: "SPEAKER_00"}, // below the 0.5s minimum
	}

	result, err := extractor.ExtractSpeakerEmbeddings(context.Background(), "chunk.wav", turns)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls, "short turn must not reach the model")
	assert.Equal(t, 1, result["SPEAKER_00"].SegmentCount)
	assert.Equal(t, []float64{1, 0}, result["SPEAKER_00"].Vector)
}

func TestExtractSpeakerEmbeddings_SkipsFailedTurns(t *testing.T) {
	fake := &fakeEmbedder{
		vectors: map[float64][]float64{20: {0, 1}},
		fail:    map[float64]bool{10: true},
	}
	extractor := NewExtractor(fake, 0.5)

	turns := []types.LocalTurn{
		{Start: 10, End: 15, Speaker: "SPEAKER_00"},
		{Start: 20, End: 25, Speaker: "SPEAKER_00"},
	}

	result, err := extractor.ExtractSpeakerEmbeddings(context.Background(), "chunk.wav", turns)
	require.NoError(t, err, "a single failed turn must not abort the chunk")

	emb := result["SPEAKER_00"]
	assert.Equal(t, 1, emb.SegmentCount)
	assert.Equal(t, []float64{0, 1}, emb.Vector)
}

func TestExtractSpeakerEmbeddings_OmitsSpeakerWithNoUsableTurn(t *testing.T) {
	fake := &fakeEmbedder{
		vectors: map[float64][]float64{10: {1, 0}},
		fail:    map[float64]bool{40: true},
	}
	extractor := NewExtractor(fake, 0.5)

	turns := []types.LocalTurn{
		{Start: 10, End: 15, Speaker: "SPEAKER_00"},
		{Start: 40, End: 45, Speaker: "SPEAKER_01"},   // extraction fails
		{Start: 50, End: 50.2, Speaker: "SPEAKER_02"}, // too short
	}

	result, err := extractor.ExtractSpeakerEmbeddings(context.Background(), "chunk.wav", turns)
	require.NoError(t, err)

	assert.Contains(t, result, "SPEAKER_00")
	assert.NotContains(t, result, "SPEAKER_01")
	assert.NotContains(t, result, "SPEAKER_02")
}

func TestWeightedMean_DimensionMismatch(t *testing.T) {
	_, err := weightedMean([][]float64{{1, 0}, {1, 0, 0}}, []float64{1, 1})
	require.Error(t, err)
}
