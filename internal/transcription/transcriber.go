// Package transcription drives the speech-recognition engine and
// implements the long-input downgrade policy.
package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// Result carries the engine's segments plus the model actually used.
// ModelUsed differs from the requested model when the long-input policy
// overrode it.
type Result struct {
	Segments  []models.TimedSegment
	ModelUsed models.TranscriptionModel
}

// Transcriber wraps a recognition Engine with the duration policy.
type Transcriber struct {
	engine Engine
	ffmpeg *media.FFmpeg
	// Inputs longer than this are downsampled and transcribed with the
	// tiny model regardless of the requested one.
	longAudioSeconds float64
	log              *logging.Logger
}

// NewTranscriber creates a Transcriber with the given long-input threshold.
func NewTranscriber(eng Engine, ffmpeg *media.FFmpeg, longAudioSeconds float64, log *logging.Logger) *Transcriber {
	return &Transcriber{
		engine:           eng,
		ffmpeg:           ffmpeg,
		longAudioSeconds: longAudioSeconds,
		log:              log,
	}
}

// Transcribe runs the recognition engine once and returns its segments
// verbatim. durationKnown=false skips all duration-based branching.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, requested models.TranscriptionModel, duration float64, durationKnown bool) (Result, error) {
	model := requested
	input := audioPath

	if durationKnown && duration > t.longAudioSeconds {
		if requested != models.TranscriptionTiny {
			t.log.LogDegradation("", string(requested), string(models.TranscriptionTiny),
				fmt.Sprintf("audio longer than %.0fs", t.longAudioSeconds))
			metrics.TranscriptionDowngradesTotal.Inc()
			model = models.TranscriptionTiny
		}

		scratch := filepath.Join(filepath.Dir(audioPath), "downsampled_for_whisper.wav")
		if err := t.ffmpeg.Downsample(ctx, audioPath, scratch); err != nil {
			return Result{}, err
		}
		// Best-effort removal; a leftover scratch file never fails the run.
		defer os.Remove(scratch)
		input = scratch
	}

	segments, err := t.engine.Transcribe(ctx, input, model)
	if err != nil {
		return Result{}, err
	}

	return Result{Segments: segments, ModelUsed: model}, nil
}
