package diarization

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

// PyannoteDiarizer runs speaker segmentation over one audio chunk by invoking
// the pyannote script as a subprocess. It emits chunk-local speech turns; the
// labels it assigns are only meaningful within that chunk.
type PyannoteDiarizer struct {
	pythonCmd  string
	scriptPath string
	device     string
}

// NewPyannoteDiarizer creates a diarizer that shells out to the given
// pyannote script.
func NewPyannoteDiarizer(pythonCmd, scriptPath, device string) *PyannoteDiarizer {
	if pythonCmd == "" {
		pythonCmd = "python"
	}
	if device == "" {
		device = "cpu"
	}
	return &PyannoteDiarizer{
		pythonCmd:  pythonCmd,
		scriptPath: scriptPath,
		device:     device,
	}
}

// diarizeOutput matches the segmentation script's JSON output.
type diarizeOutput struct {
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Speaker string  `json:"speaker"`
	} `json:"segments"`
	Error string `json:"error,omitempty"`
}

// Diarize runs the segmentation model on a chunk file and returns chunk-local
// turns. Start/End in the result are chunk-local seconds.
func (d *PyannoteDiarizer) Diarize(ctx context.Context, audioPath string) ([]types.LocalTurn, error) {
	cmd := exec.CommandContext(ctx, d.pythonCmd,
		d.scriptPath,
		"--input", audioPath,
		"--device", d.device,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pyannote diarization failed: %v", err)
	}

	var parsed diarizeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse diarization output: %v", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("pyannote error: %s", parsed.Error)
	}

	turns := make([]types.LocalTurn, 0, len(parsed.Segments))
	speakers := map[string]struct{}{}
	for _, seg := range parsed.Segments {
		if seg.End <= seg.Start {
			continue
		}
		turns = append(turns, types.LocalTurn{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: seg.Speaker,
		})
		speakers[seg.Speaker] = struct{}{}
	}

	log.Printf("Diarized %s: %d speakers, %d turns", audioPath, len(speakers), len(turns))
	return turns, nil
}
