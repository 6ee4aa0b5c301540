package chunking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

var defaultCfg = Config{
	ChunkDuration:    480,
	OverlapDuration:  30,
	MinChunkDuration: 60,
}

func TestPlan_TwoChunks(t *testing.T) {
	chunks, err := Plan(600, defaultCfg)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, types.AudioChunk{
		Index: 0, Offset: 0, Duration: 510,
		EffectiveStart: 0, EffectiveEnd: 480,
	}, chunks[0])
	assert.Equal(t, types.AudioChunk{
		Index: 1, Offset: 450, Duration: 150,
		EffectiveStart: 480, EffectiveEnd: 600,
	}, chunks[1])
}

func TestPlan_LongRecording(t *testing.T) {
	chunks, err := Plan(2520, defaultCfg)
	require.NoError(t, err)
	require.Len(t, chunks, 6)

	// Chunks advance by step = chunk - overlap.
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.InDelta(t, float64(i)*450, c.Offset, 1e-9)
	}
	assert.InDelta(t, 2520, chunks[5].EffectiveEnd, 1e-9)
	require.NoError(t, ValidateGeometry(chunks, 2520))
}

func TestPlan_ShortTailExtendsPreviousChunk(t *testing.T) {
	// At 950s the third prospective chunk would start at 900 with only 50s
	// remaining, below the 60s minimum; the second chunk absorbs the tail.
	chunks, err := Plan(950, defaultCfg)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.InDelta(t, 450, chunks[1].Offset, 1e-9)
	assert.InDelta(t, 480, chunks[1].EffectiveStart, 1e-9)
	assert.InDelta(t, 950, chunks[1].EffectiveEnd, 1e-9)
	require.NoError(t, ValidateGeometry(chunks, 950))
}

func TestPlan_TailInsideOverlapEmitsNoChunk(t *testing.T) {
	// With the minimum chunk duration below the overlap, a tail can clear the
	// minimum while the previous chunk's effective window already reaches the
	// end of the recording. No further chunk may be emitted: its effective
	// window would be empty.
	cfg := Config{ChunkDuration: 480, OverlapDuration: 30, MinChunkDuration: 20}

	chunks, err := Plan(925, cfg)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.InDelta(t, 925, chunks[1].EffectiveEnd, 1e-9)
	require.NoError(t, ValidateGeometry(chunks, 925))

	// Exact boundary: the remainder equals the overlap.
	chunks, err = Plan(930, cfg)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.InDelta(t, 930, chunks[1].EffectiveEnd, 1e-9)
	require.NoError(t, ValidateGeometry(chunks, 930))

	// Geometry holds across the whole corner for this configuration.
	for total := 901.0; total < 960; total += 1.0 {
		chunks, err := Plan(total, cfg)
		require.NoError(t, err, "duration %g", total)
		require.NoError(t, ValidateGeometry(chunks, total), "duration %g", total)
	}
}

func TestPlan_SingleChunkWhenRecordingIsShort(t *testing.T) {
	chunks, err := Plan(400, defaultCfg)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 0.0, chunks[0].Offset)
	assert.InDelta(t, 400, chunks[0].Duration, 1e-9)
	assert.InDelta(t, 400, chunks[0].EffectiveEnd, 1e-9)
}

func TestPlan_RecordingShorterThanMinimumStillChunked(t *testing.T) {
	// The minimum chunk rule only suppresses a *trailing* chunk; a recording
	// shorter than the minimum still yields exactly one chunk.
	chunks, err := Plan(30, defaultCfg)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.InDelta(t, 30, chunks[0].EffectiveEnd, 1e-9)
}

func TestPlan_Deterministic(t *testing.T) {
	first, err := Plan(2520, defaultCfg)
	require.NoError(t, err)
	second, err := Plan(2520, defaultCfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPlan_GeometryHoldsAcrossDurations(t *testing.T) {
	durations := []float64{1, 59.9, 60, 450, 479.5, 480, 480.1, 510, 600,
		899.9, 900, 929.9, 930, 950, 1000, 3600, 7201.5, 14400}

	for _, total := range durations {
		chunks, err := Plan(total, defaultCfg)
		require.NoError(t, err, "duration %g", total)
		require.NoError(t, ValidateGeometry(chunks, total), "duration %g", total)

		// Physical spans always contain real audio.
		for _, c := range chunks {
			assert.LessOrEqual(t, c.Offset+c.Duration, total+1e-9, "duration %g chunk %d", total, c.Index)
			assert.Greater(t, c.Duration, 0.0, "duration %g chunk %d", total, c.Index)
		}
	}
}

func TestPlan_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		cfg   Config
	}{
		{"zero total", 0, defaultCfg},
		{"negative total", -5, defaultCfg},
		{"zero chunk", 600, Config{ChunkDuration: 0, OverlapDuration: 30, MinChunkDuration: 60}},
		{"zero overlap", 600, Config{ChunkDuration: 480, OverlapDuration: 0, MinChunkDuration: 60}},
		{"overlap equals chunk", 600, Config{ChunkDuration: 480, OverlapDuration: 480, MinChunkDuration: 60}},
		{"overlap exceeds chunk", 600, Config{ChunkDuration: 480, OverlapDuration: 500, MinChunkDuration: 60}},
		{"zero min chunk", 600, Config{ChunkDuration: 480, OverlapDuration: 30, MinChunkDuration: 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chunks, err := Plan(tc.total, tc.cfg)
			require.Error(t, err)
			assert.Nil(t, chunks)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "want ConfigurationError, got %T", err)
		})
	}
}

func TestValidateGeometry_Violations(t *testing.T) {
	base, err := Plan(950, defaultCfg)
	require.NoError(t, err)

	tamper := func(f func(c []types.AudioChunk)) []types.AudioChunk {
		cp := make([]types.AudioChunk, len(base))
		copy(cp, base)
		f(cp)
		return cp
	}

	tests := []struct {
		name   string
		chunks []types.AudioChunk
	}{
		{"empty", nil},
		{"first window shifted", tamper(func(c []types.AudioChunk) { c[0].EffectiveStart = 5 })},
		{"gap between windows", tamper(func(c []types.AudioChunk) { c[1].EffectiveStart += 1 })},
		{"empty window", tamper(func(c []types.AudioChunk) { c[1].EffectiveEnd = c[1].EffectiveStart })},
		{"index out of order", tamper(func(c []types.AudioChunk) { c[1].Index = 5 })},
		{"short final window", tamper(func(c []types.AudioChunk) { c[1].EffectiveEnd = 940 })},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGeometry(tc.chunks, 950)
			require.Error(t, err)

			var geoErr *GeometryError
			assert.True(t, errors.As(err, &geoErr), "want GeometryError, got %T", err)
		})
	}
}
