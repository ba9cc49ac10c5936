package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/config"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/engine"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/separation"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/subtitle"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/transcription"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// fakeRunner stands in for every external binary. ffprobe answers with
// the configured duration; spleeter writes its conventional stem
// directory; ffmpeg calls succeed unless failOn matches.
type fakeRunner struct {
	t             *testing.T
	workDir       string
	probeOutput   string
	probeErr      error
	failSpleeter  func(args []string) error
	failOn        string // substring of the joined ffmpeg args
	spleeterCalls int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	joined := strings.Join(args, " ")

	switch name {
	case "spleeter":
		f.spleeterCalls++
		if f.failSpleeter != nil {
			if err := f.failSpleeter(args); err != nil {
				return err
			}
		}
		// Input is the last argument; stems land under its base name.
		input := args[len(args)-1]
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		stemDir := filepath.Join(f.workDir, base)
		require.NoError(f.t, os.MkdirAll(stemDir, 0755))
		for _, stem := range []string{"vocals.wav", "accompaniment.wav", "drums.wav", "bass.wav", "other.wav"} {
			require.NoError(f.t, os.WriteFile(filepath.Join(stemDir, stem), []byte("wav"), 0644))
		}
		return nil
	case "ffmpeg":
		if f.failOn != "" && strings.Contains(joined, f.failOn) {
			return &engine.InvocationError{Name: name, ExitCode: 1, Stderr: "boom"}
		}
		return nil
	}
	return nil
}

func (f *fakeRunner) Output(_ context.Context, name string, _ ...string) (string, error) {
	if name == "ffprobe" {
		return f.probeOutput, f.probeErr
	}
	return "", nil
}

// stubRecognizer records the model the pipeline invoked it with.
type stubRecognizer struct {
	gotModel models.TranscriptionModel
	segments []models.TimedSegment
}

func (s *stubRecognizer) Transcribe(_ context.Context, _ string, model models.TranscriptionModel) ([]models.TimedSegment, error) {
	s.gotModel = model
	return s.segments, nil
}

// fakeReporter collects stage, progress, and notice updates.
type fakeReporter struct {
	stages   []string
	progress []int
	notices  []string
}

func (r *fakeReporter) SetStage(stage string)   { r.stages = append(r.stages, stage) }
func (r *fakeReporter) SetProgress(p int)       { r.progress = append(r.progress, p) }
func (r *fakeReporter) AddNotice(notice string) { r.notices = append(r.notices, notice) }
func (r *fakeReporter) lastProgress() int {
	if len(r.progress) == 0 {
		return 0
	}
	return r.progress[len(r.progress)-1]
}

func newTestPipeline(runner *fakeRunner, rec transcription.Engine) *Pipeline {
	cfg := config.PipelineConfig{
		LongAudioSeconds:    180,
		WarnDurationSeconds: 300,
	}
	log := logging.Nop()
	ffmpeg := media.NewFFmpegWithRunner("ffmpeg", "ffprobe", runner)
	sep := separation.NewSeparator("spleeter", runner, ffmpeg, log)
	tr := transcription.NewTranscriber(rec, ffmpeg, cfg.LongAudioSeconds, log)
	return New(cfg, ffmpeg, sep, tr, log)
}

func TestProcessShortVideoTwoStemTiny(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "60.000000"}
	rec := &stubRecognizer{segments: []models.TimedSegment{{Start: 1, End: 2, Text: "la la"}}}
	pipe := newTestPipeline(runner, rec)
	rep := &fakeReporter{}

	outputPath, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workDir, "output", "karaoke_output.mp4"), outputPath)
	assert.Equal(t, 100, rep.lastProgress())
	assert.Equal(t, models.StageDone, rep.stages[len(rep.stages)-1])
	assert.Empty(t, rep.notices, "a clean short run records no notices")
	assert.Equal(t, models.TranscriptionTiny, rec.gotModel)

	// Subtitles were written between transcription and composition.
	entries, err := subtitle.ParseSRT(filepath.Join(workDir, "lyrics.srt"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "la la", entries[0].Text)

	// Stages appear in pipeline order.
	assert.Equal(t, []string{
		models.StageProbing,
		models.StageExtractingAudio,
		models.StageSeparatingVocals,
		models.StageTranscribing,
		models.StageWritingSubtitles,
		models.StageComposingVideo,
		models.StageDone,
	}, rep.stages)
}

func TestProcessLongVideoSilentlyUsesTiny(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "240.000000"}
	rec := &stubRecognizer{}
	pipe := newTestPipeline(runner, rec)
	rep := &fakeReporter{}

	_, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionBase,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.NoError(t, err)

	assert.Equal(t, models.TranscriptionTiny, rec.gotModel, "long input must invoke the tiny model")

	var sawModelNotice bool
	for _, notice := range rep.notices {
		if strings.Contains(notice, "'tiny' model") {
			sawModelNotice = true
		}
	}
	assert.True(t, sawModelNotice, "model override must be surfaced as a notice")
}

func TestProcessFourStemFallbackRecordsNotice(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{
		t: t, workDir: workDir, probeOutput: "60.000000",
		failSpleeter: func(args []string) error {
			for _, arg := range args {
				if arg == "spleeter:4stems" {
					return &engine.InvocationError{Name: "spleeter", ExitCode: 1, Stderr: "OOM"}
				}
			}
			return nil
		},
	}
	rec := &stubRecognizer{}
	pipe := newTestPipeline(runner, rec)
	rep := &fakeReporter{}

	outputPath, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationFourStem,
		FontSize:           24,
	}, rep)
	require.NoError(t, err, "FourStem failure must degrade, not abort")
	require.NotEmpty(t, outputPath)

	assert.Equal(t, 2, runner.spleeterCalls)

	var sawFallbackNotice bool
	for _, notice := range rep.notices {
		if strings.Contains(notice, "Falling back to 2stems") {
			sawFallbackNotice = true
		}
	}
	assert.True(t, sawFallbackNotice, "degradation must be surfaced as a notice")
}

func TestProcessProbeFailureContinues(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{
		t: t, workDir: workDir,
		probeErr: &engine.InvocationError{Name: "ffprobe", ExitCode: 1},
	}
	rec := &stubRecognizer{}
	pipe := newTestPipeline(runner, rec)
	rep := &fakeReporter{}

	_, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionBase,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.NoError(t, err, "probe failure is advisory and must not abort")

	// Duration unknown: no downgrade applies.
	assert.Equal(t, models.TranscriptionBase, rec.gotModel)
	assert.Equal(t, 100, rep.lastProgress())
}

func TestProcessLongDurationWarning(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "360.000000"}
	pipe := newTestPipeline(runner, &stubRecognizer{})
	rep := &fakeReporter{}

	_, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.NoError(t, err)

	var sawWarning bool
	for _, notice := range rep.notices {
		if strings.Contains(notice, "Processing may fail due to memory constraints") {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestProcessComposeFailurePropagates(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "60.000000", failOn: "libx264"}
	pipe := newTestPipeline(runner, &stubRecognizer{})
	rep := &fakeReporter{}

	_, err := pipe.Process(context.Background(), inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.Error(t, err)
	assert.Equal(t, 80, rep.lastProgress(), "progress stops at the last completed checkpoint")
}

// cancellingRecognizer cancels the run from inside its own stage and
// records whether its context survived.
type cancellingRecognizer struct {
	cancel context.CancelFunc
	ctxErr error
}

func (s *cancellingRecognizer) Transcribe(ctx context.Context, _ string, _ models.TranscriptionModel) ([]models.TimedSegment, error) {
	s.cancel()
	s.ctxErr = ctx.Err()
	return []models.TimedSegment{{Start: 0, End: 1, Text: "la"}}, nil
}

func TestProcessCancelMidStageFinishesStage(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "60.000000"}
	rec := &cancellingRecognizer{cancel: cancel}
	pipe := newTestPipeline(runner, rec)
	rep := &fakeReporter{}

	_, err := pipe.Process(ctx, inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The stage in flight when the cancel fired ran to completion.
	assert.NoError(t, rec.ctxErr, "a cancel must not reach the running stage")
	assert.Equal(t, 70, rep.lastProgress(), "transcription checkpoint still recorded")

	// The following stage never started.
	_, statErr := os.Stat(filepath.Join(workDir, "lyrics.srt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessCancelledBeforeStage(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(workDir, "input_video.mp4")
	require.NoError(t, os.WriteFile(inputPath, []byte("mp4"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{t: t, workDir: workDir, probeOutput: "60.000000"}
	pipe := newTestPipeline(runner, &stubRecognizer{})
	rep := &fakeReporter{}

	_, err := pipe.Process(ctx, inputPath, workDir, models.RunOptions{
		TranscriptionModel: models.TranscriptionTiny,
		SeparationModel:    models.SeparationTwoStem,
		FontSize:           24,
	}, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, rep.lastProgress(), 100)
}
