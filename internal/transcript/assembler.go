package transcript

import (
	"math"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// minOverlapRatio is the share of an ASR segment that must overlap a speaker
// turn before the turn is considered a candidate owner for its text.
const minOverlapRatio = 0.2

// Assemble merges consolidated speaker turns with per-chunk recognized text
// into the final transcript, ordered by start time.
//
// ASR segments arrive chunk-local; they are shifted by their chunk's offset
// and clipped to the chunk's effective window so text appearing in a seam
// overlap is attributed exactly once, mirroring what consolidation does to
// the speaker turns. Each surviving segment is then attached to the speaker
// turn that covers it best: candidates need at least minOverlapRatio of the
// segment's duration, and among candidates the one with the highest share of
// its own duration overlapped wins. Segments overlapping no turn at all are
// dropped as silence-adjacent artifacts.
func Assemble(turns []types.GlobalTurn, chunks []types.AudioChunk, segmentsByChunk map[int][]types.Segment) []types.TranscriptEntry {
	segments := globalSegments(chunks, segmentsByChunk)

	texts := make([][]string, len(turns))
	for _, seg := range segments {
		if turn := bestTurn(seg, turns); turn >= 0 {
			texts[turn] = append(texts[turn], strings.TrimSpace(seg.Text))
		}
	}

	entries := make([]types.TranscriptEntry, 0, len(turns))
	for i, turn := range turns {
		entries = append(entries, types.TranscriptEntry{
			Start:         turn.Start,
			End:           turn.End,
			SpeakerID:     turn.SpeakerID,
			Text:          strings.Join(texts[i], " "),
			LowConfidence: turn.LowConfidence,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	return entries
}

// globalSegments shifts chunk-local ASR segments into the global timeline and
// clips them to their chunk's effective window.
func globalSegments(chunks []types.AudioChunk, segmentsByChunk map[int][]types.Segment) []types.Segment {
	var out []types.Segment
	for _, chunk := range chunks {
		for _, seg := range segmentsByChunk[chunk.Index] {
			start := math.Max(chunk.Offset+seg.Start, chunk.EffectiveStart)
			end := math.Min(chunk.Offset+seg.End, chunk.EffectiveEnd)
			if end <= start {
				continue
			}
			out = append(out, types.Segment{Start: start, End: end, Text: seg.Text})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// bestTurn picks the owning turn index for one global ASR segment, or -1 when
// no turn overlaps it enough.
func bestTurn(seg types.Segment, turns []types.GlobalTurn) int {
	segDuration := seg.End - seg.Start
	if segDuration <= 0 {
		return -1
	}

	best := -1
	bestCoverage := 0.0
	for i, turn := range turns {
		start := math.Max(seg.Start, turn.Start)
		end := math.Min(seg.End, turn.End)
		if end <= start {
			continue
		}
		overlap := end - start
		if overlap/segDuration < minOverlapRatio {
			continue
		}
		turnDuration := turn.End - turn.Start
		coverage := 0.0
		if turnDuration > 0 {
			coverage = overlap / turnDuration
		}
		if best < 0 || coverage > bestCoverage {
			best = i
			bestCoverage = coverage
		}
	}
	return best
}

// WordCount counts the words across all transcript entries.
func WordCount(entries []types.TranscriptEntry) int {
	n := 0
	for _, e := range entries {
		n += len(strings.Fields(e.Text))
	}
	return n
}
