// Package separation drives the vocal-separation engine and implements
// the stem-model degradation policy.
package separation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/engine"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// downgrades is the bounded fallback table: a failed model retries once
// as its downgrade; a model with no entry propagates the failure.
var downgrades = map[models.SeparationModel]models.SeparationModel{
	models.SeparationFourStem: models.SeparationTwoStem,
}

// Result reports the instrumental track and the model that produced it.
// ModelUsed differs from the requested model when the engine degraded.
type Result struct {
	InstrumentalPath string
	ModelUsed        models.SeparationModel
}

// Separator invokes the separation engine with a chosen stem model.
type Separator struct {
	enginePath string
	runner     engine.Runner
	ffmpeg     *media.FFmpeg
	log        *logging.Logger
}

// NewSeparator creates a Separator around the given engine binary.
func NewSeparator(enginePath string, runner engine.Runner, ffmpeg *media.FFmpeg, log *logging.Logger) *Separator {
	return &Separator{
		enginePath: enginePath,
		runner:     runner,
		ffmpeg:     ffmpeg,
		log:        log,
	}
}

// Separate produces an instrumental track from audioPath in workDir.
// A FourStem failure never propagates: it degrades to TwoStem and only
// a TwoStem failure is returned to the caller. Intermediate stem and
// downsample files are left in workDir for the caller to clean up.
func (s *Separator) Separate(ctx context.Context, audioPath, workDir string, model models.SeparationModel) (Result, error) {
	for {
		instrumental, err := s.separateOnce(ctx, audioPath, workDir, model)
		if err == nil {
			return Result{InstrumentalPath: instrumental, ModelUsed: model}, nil
		}

		next, ok := downgrades[model]
		if !ok {
			return Result{}, err
		}

		s.log.LogDegradation("", string(model), string(next), err.Error())
		metrics.SeparationFallbacksTotal.Inc()
		model = next
	}
}

func (s *Separator) separateOnce(ctx context.Context, audioPath, workDir string, model models.SeparationModel) (string, error) {
	input := audioPath
	args := []string{"separate", "-p", model.EngineSpec()}

	if model == models.SeparationFourStem {
		// Higher stem counts are memory-heavy; run on a 16kHz mono copy.
		downsampled := filepath.Join(workDir, "downsampled_audio.wav")
		if err := s.ffmpeg.Downsample(ctx, audioPath, downsampled); err != nil {
			return "", err
		}
		input = downsampled
		args = append(args, "--mwf")
	}

	args = append(args, "-o", workDir, input)
	if err := s.runner.Run(ctx, s.enginePath, args...); err != nil {
		return "", fmt.Errorf("separation failed: %w", err)
	}

	// The engine writes stems under <workDir>/<input base name>/.
	stemDir := filepath.Join(workDir, baseName(input))

	if model == models.SeparationFourStem {
		return s.mixdown(ctx, stemDir)
	}

	// TwoStem emits the combined non-vocal track directly.
	accompaniment := filepath.Join(stemDir, "accompaniment.wav")
	if _, err := os.Stat(accompaniment); err != nil {
		return "", fmt.Errorf("accompaniment stem not found in %s: %w", stemDir, engine.ErrMissingOutput)
	}
	return accompaniment, nil
}

// mixdown sums the non-vocal stems into one instrumental file. Absent
// stem files after a nominally successful run count as an engine
// failure so the caller's fallback applies.
func (s *Separator) mixdown(ctx context.Context, stemDir string) (string, error) {
	stems := []string{
		filepath.Join(stemDir, "drums.wav"),
		filepath.Join(stemDir, "bass.wav"),
		filepath.Join(stemDir, "other.wav"),
	}
	for _, stem := range stems {
		if _, err := os.Stat(stem); err != nil {
			return "", fmt.Errorf("stem %s not found: %w", filepath.Base(stem), engine.ErrMissingOutput)
		}
	}

	instrumental := filepath.Join(stemDir, "accompaniment.wav")
	if err := s.ffmpeg.MixStems(ctx, stems, instrumental); err != nil {
		return "", err
	}
	return instrumental, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
