package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/engine"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// Engine is the speech-recognition collaborator: given audio and a
// model size, return timed text segments in temporal order.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, model models.TranscriptionModel) ([]models.TimedSegment, error)
}

// WhisperEngine invokes the whisper CLI, which writes a JSON transcript
// next to the requested output directory.
type WhisperEngine struct {
	whisperPath string
	runner      engine.Runner
}

// NewWhisperEngine creates a WhisperEngine around the given binary.
func NewWhisperEngine(whisperPath string, runner engine.Runner) *WhisperEngine {
	return &WhisperEngine{whisperPath: whisperPath, runner: runner}
}

// whisperOutput mirrors the transcript JSON the engine emits.
type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperEngine) Transcribe(ctx context.Context, audioPath string, model models.TranscriptionModel) ([]models.TimedSegment, error) {
	outDir := filepath.Dir(audioPath)

	err := w.runner.Run(ctx, w.whisperPath,
		audioPath,
		"--model", string(model),
		"--output_format", "json",
		"--output_dir", outDir,
	)
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}

	transcriptPath := filepath.Join(outDir, baseName(audioPath)+".json")
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		return nil, fmt.Errorf("transcript %s not readable: %w", transcriptPath, engine.ErrMissingOutput)
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}

	segments := make([]models.TimedSegment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segments = append(segments, models.TimedSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return segments, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
