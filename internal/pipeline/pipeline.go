// Package pipeline sequences the karaoke stages and applies the
// adaptive quality policy around them.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/config"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/separation"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/subtitle"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/tracing"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/transcription"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// Reporter receives progress, stage, and notice updates from a run.
type Reporter interface {
	SetStage(stage string)
	SetProgress(progress int)
	AddNotice(notice string)
}

// Pipeline orchestrates probe, extraction, separation, transcription,
// subtitle writing, and final composition for one run. A Pipeline is
// stateless and safe for concurrent runs; all per-run state lives in
// the run's working directory.
type Pipeline struct {
	cfg         config.PipelineConfig
	ffmpeg      *media.FFmpeg
	separator   *separation.Separator
	transcriber *transcription.Transcriber
	log         *logging.Logger
}

// New assembles a Pipeline from its stage components.
func New(cfg config.PipelineConfig, ffmpeg *media.FFmpeg, sep *separation.Separator, tr *transcription.Transcriber, log *logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		ffmpeg:      ffmpeg,
		separator:   sep,
		transcriber: tr,
		log:         log,
	}
}

// Progress checkpoints reported as each stage completes. Progress is
// monotone; there is no per-engine fine-grained progress.
const (
	progressUploaded    = 10
	progressExtracted   = 20
	progressSeparated   = 50
	progressTranscribed = 70
	progressSubtitled   = 80
	progressComposed    = 100
)

// Process runs the full pipeline on an uploaded video already saved at
// inputPath inside workDir, and returns the final karaoke video path.
// Recoverable conditions (duration probe failure, FourStem separation
// failure) are absorbed into policy decisions and notices; any other
// stage failure aborts the run and propagates.
func (p *Pipeline) Process(ctx context.Context, inputPath, workDir string, opts models.RunOptions, rep Reporter) (string, error) {
	rep.SetProgress(progressUploaded)

	// Probing. Duration is advisory: on failure the pipeline continues
	// with duration unknown and skips all duration-based branching.
	rep.SetStage(models.StageProbing)
	duration, durationKnown := p.probe(context.WithoutCancel(ctx), inputPath, rep)

	// ExtractingAudio
	rep.SetStage(models.StageExtractingAudio)
	audioPath := filepath.Join(workDir, "original_audio.wav")
	err := p.timed(ctx, models.StageExtractingAudio, func(ctx context.Context) error {
		return p.ffmpeg.ExtractAudio(ctx, inputPath, audioPath)
	})
	if err != nil {
		return "", err
	}
	rep.SetProgress(progressExtracted)

	// SeparatingVocals
	rep.SetStage(models.StageSeparatingVocals)
	var sepResult separation.Result
	err = p.timed(ctx, models.StageSeparatingVocals, func(ctx context.Context) error {
		var err error
		sepResult, err = p.separator.Separate(ctx, audioPath, workDir, opts.SeparationModel)
		return err
	})
	if err != nil {
		return "", err
	}
	if sepResult.ModelUsed != opts.SeparationModel {
		rep.AddNotice(fmt.Sprintf("The %s separation model failed due to memory limits. Falling back to %s...",
			opts.SeparationModel, sepResult.ModelUsed))
	}
	rep.SetProgress(progressSeparated)

	// Transcribing runs on the original audio so the vocal timing
	// matches what the singer hears, not the instrumental.
	rep.SetStage(models.StageTranscribing)
	var trResult transcription.Result
	err = p.timed(ctx, models.StageTranscribing, func(ctx context.Context) error {
		var err error
		trResult, err = p.transcriber.Transcribe(ctx, audioPath, opts.TranscriptionModel, duration, durationKnown)
		return err
	})
	if err != nil {
		return "", err
	}
	if trResult.ModelUsed != opts.TranscriptionModel {
		rep.AddNotice(fmt.Sprintf("Video is %.1f minutes long. Using '%s' model for faster processing.",
			duration/60, trResult.ModelUsed))
	}
	rep.SetProgress(progressTranscribed)

	// WritingSubtitles
	rep.SetStage(models.StageWritingSubtitles)
	subtitlePath := filepath.Join(workDir, "lyrics.srt")
	err = p.timed(ctx, models.StageWritingSubtitles, func(ctx context.Context) error {
		_, err := subtitle.WriteSRT(trResult.Segments, subtitlePath)
		return err
	})
	if err != nil {
		return "", err
	}
	rep.SetProgress(progressSubtitled)

	// ComposingVideo
	rep.SetStage(models.StageComposingVideo)
	outputDir := filepath.Join(workDir, "output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, "karaoke_output.mp4")
	err = p.timed(ctx, models.StageComposingVideo, func(ctx context.Context) error {
		return p.ffmpeg.Compose(ctx, media.ComposeOptions{
			VideoPath:        inputPath,
			InstrumentalPath: sepResult.InstrumentalPath,
			SubtitlePath:     subtitlePath,
			OutputPath:       outputPath,
			FontSize:         opts.FontSize,
		})
	})
	if err != nil {
		return "", err
	}
	rep.SetProgress(progressComposed)
	rep.SetStage(models.StageDone)

	return outputPath, nil
}

// probe queries the container duration and records long-input warnings.
func (p *Pipeline) probe(ctx context.Context, inputPath string, rep Reporter) (float64, bool) {
	duration, ok := p.ffmpeg.Duration(ctx, inputPath)
	if !ok {
		metrics.ProbeFailuresTotal.Inc()
		p.log.Warn("duration probe failed, continuing with duration unknown")
		rep.AddNotice("Could not determine input duration; using default processing settings.")
		return 0, false
	}

	if duration > p.cfg.WarnDurationSeconds {
		rep.AddNotice(fmt.Sprintf("Video is %.1f minutes long. Processing may fail due to memory constraints.",
			duration/60))
	}
	return duration, true
}

// timed wraps one stage with a cancellation check, a tracing span, and
// a stage duration observation. Cancellation is honored only between
// stages: the body runs on a detached context so an in-flight engine
// process is never killed mid-stage.
func (p *Pipeline) timed(ctx context.Context, stage string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled before %s: %w", stage, err)
	}

	span, stageCtx := tracing.StartSpan(context.WithoutCancel(ctx), "pipeline."+stage)
	defer tracing.FinishSpan(span)

	start := time.Now()
	err := fn(stageCtx)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil {
		tracing.LogError(span, err)
	}
	return err
}
