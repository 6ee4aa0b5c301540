package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// singleChunk covers the whole 600s recording by itself.
func singleChunk() []types.AudioChunk {
	return []types.AudioChunk{
		{Index: 0, Offset: 0, Duration: 600, EffectiveStart: 0, EffectiveEnd: 600},
	}
}

func seamChunks() []types.AudioChunk {
	return []types.AudioChunk{
		{Index: 0, Offset: 0, Duration: 510, EffectiveStart: 0, EffectiveEnd: 480},
		{Index: 1, Offset: 450, Duration: 150, EffectiveStart: 480, EffectiveEnd: 600},
	}
}

func TestAssemble_AttachesTextToCoveringTurn(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 0, End: 30, SpeakerID: 0},
		{Start: 35, End: 60, SpeakerID: 1},
	}
	segments := map[int][]types.Segment{
		0: {
			{Start: 2, End: 10, Text: " Good morning everyone. "},
			{Start: 12, End: 28, Text: "Let's get started."},
			{Start: 36, End: 55, Text: "Thanks, first item."},
		},
	}

	entries := Assemble(turns, singleChunk(), segments)
	require.Len(t, entries, 2)

	assert.Equal(t, 0, entries[0].SpeakerID)
	assert.Equal(t, "Good morning everyone. Let's get started.", entries[0].Text)
	assert.Equal(t, 1, entries[1].SpeakerID)
	assert.Equal(t, "Thanks, first item.", entries[1].Text)
}

func TestAssemble_SegmentSpanningTwoTurns(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 0, End: 10, SpeakerID: 0},
		{Start: 10, End: 40, SpeakerID: 1},
	}
	// 8s inside the second turn, 2s inside the first: the second turn has
	// both more of the segment and more of itself covered.
	segments := map[int][]types.Segment{
		0: {{Start: 8, End: 18, Text: "you were saying about the budget"}},
	}

	entries := Assemble(turns, singleChunk(), segments)
	require.Len(t, entries, 2)

	assert.Equal(t, "", entries[0].Text)
	assert.Equal(t, "you were saying about the budget", entries[1].Text)
}

func TestAssemble_DropsSegmentsWithNoOwner(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 100, End: 130, SpeakerID: 0},
	}
	segments := map[int][]types.Segment{
		0: {
			{Start: 10, End: 20, Text: "noise before anyone speaks"},
			{Start: 105, End: 110, Text: "actual speech"},
		},
	}

	entries := Assemble(turns, singleChunk(), segments)
	require.Len(t, entries, 1)
	assert.Equal(t, "actual speech", entries[0].Text)
}

func TestAssemble_SeamTextAttributedOnce(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 470, End: 500, SpeakerID: 0},
	}
	// Both chunks transcribed the same words near the seam at 480. Each
	// chunk's segment survives only inside its own effective window, so the
	// words are attached once per window rather than duplicated.
	segments := map[int][]types.Segment{
		0: {{Start: 472, End: 479, Text: "before the seam"}},
		1: {{Start: 32, End: 48, Text: "after the seam"}}, // global [482,498]
	}

	entries := Assemble(turns, seamChunks(), segments)
	require.Len(t, entries, 1)
	assert.Equal(t, "before the seam after the seam", entries[0].Text)
}

func TestAssemble_SeamSegmentClippedOutIsGone(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 460, End: 478, SpeakerID: 0},
	}
	// Chunk 1 heard speech from its overlap region before its effective
	// window; that text belongs to chunk 0's account of the timeline.
	segments := map[int][]types.Segment{
		0: {{Start: 462, End: 476, Text: "counts once"}},
		1: {{Start: 12, End: 26, Text: "counts once"}}, // global [462,476], clipped away
	}

	entries := Assemble(turns, seamChunks(), segments)
	require.Len(t, entries, 1)
	assert.Equal(t, "counts once", entries[0].Text)
}

func TestAssemble_EntriesSortedByStart(t *testing.T) {
	turns := []types.GlobalTurn{
		{Start: 50, End: 60, SpeakerID: 1},
		{Start: 0, End: 10, SpeakerID: 0},
		{Start: 20, End: 30, SpeakerID: 0, LowConfidence: true},
	}

	entries := Assemble(turns, singleChunk(), nil)
	require.Len(t, entries, 3)
	assert.Equal(t, 0.0, entries[0].Start)
	assert.Equal(t, 20.0, entries[1].Start)
	assert.True(t, entries[1].LowConfidence)
	assert.Equal(t, 50.0, entries[2].Start)
}

func TestWordCount(t *testing.T) {
	entries := []types.TranscriptEntry{
		{Text: "Good morning everyone."},
		{Text: ""},
		{Text: "  two   words "},
	}
	assert.Equal(t, 5, WordCount(entries))
}
