// Package media wraps the ffmpeg/ffprobe transcoding engine for the
// operations the karaoke pipeline needs: metadata probing, audio
// extraction, downsampling, stem mixdown, and final composition.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/engine"
)

// FFmpeg wraps ffmpeg/ffprobe invocations.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      engine.Runner
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      engine.ExecRunner{},
	}
}

// NewFFmpegWithRunner substitutes the command runner; used in tests.
func NewFFmpegWithRunner(ffmpegPath, ffprobePath string, runner engine.Runner) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
	}
}

// Metadata holds container metadata extracted from ffprobe
type Metadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
}

// HasAudio reports whether the container carries an audio stream.
func (m *Metadata) HasAudio() bool {
	for _, stream := range m.Streams {
		if stream.CodecType == "audio" {
			return true
		}
	}
	return false
}

// Probe extracts container metadata. A failure here means the input is
// not decodable.
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*Metadata, error) {
	out, err := f.runner.Output(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal([]byte(out), &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return &metadata, nil
}

// Duration queries the container duration in seconds. Duration is
// advisory: any probe failure or unparseable output reports ok=false
// rather than an error, and the pipeline continues without it.
func (f *FFmpeg) Duration(ctx context.Context, inputPath string) (float64, bool) {
	out, err := f.runner.Output(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	if err != nil {
		return 0, false
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, false
	}
	return duration, true
}

// ExtractAudio demuxes the best audio stream to a standalone file.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, outputPath string) error {
	err := f.runner.Run(ctx, f.ffmpegPath,
		"-i", videoPath,
		"-q:a", "0",
		"-map", "a",
		outputPath,
		"-y",
	)
	if err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}

// Downsample re-encodes audio to 16 kHz mono to lower the memory cost
// of the separation and recognition engines.
func (f *FFmpeg) Downsample(ctx context.Context, inputPath, outputPath string) error {
	err := f.runner.Run(ctx, f.ffmpegPath,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		outputPath,
		"-y",
	)
	if err != nil {
		return fmt.Errorf("downsampling failed: %w", err)
	}
	return nil
}

// MixStems sums the given stems with equal weight into one track.
func (f *FFmpeg) MixStems(ctx context.Context, stemPaths []string, outputPath string) error {
	args := make([]string, 0, 2*len(stemPaths)+6)
	filter := ""
	for i, stem := range stemPaths {
		args = append(args, "-i", stem)
		filter += fmt.Sprintf("[%d:a]", i)
	}
	filter += fmt.Sprintf("amix=inputs=%d:dropout_transition=0", len(stemPaths))

	args = append(args, "-filter_complex", filter, outputPath, "-y")

	if err := f.runner.Run(ctx, f.ffmpegPath, args...); err != nil {
		return fmt.Errorf("stem mixdown failed: %w", err)
	}
	return nil
}

// ComposeOptions holds inputs for the final karaoke mux.
type ComposeOptions struct {
	VideoPath        string
	InstrumentalPath string
	SubtitlePath     string
	OutputPath       string
	FontSize         int
}

// Compose muxes the original video stream with the instrumental audio
// and burns in the subtitles. Encoding is biased toward speed (faster
// preset, crf 28) to keep resource use low.
func (f *FFmpeg) Compose(ctx context.Context, opts ComposeOptions) error {
	if opts.FontSize <= 0 {
		opts.FontSize = 24
	}

	filter := fmt.Sprintf("subtitles=%s:force_style='FontSize=%d'",
		escapeFilterPath(opts.SubtitlePath), opts.FontSize)

	err := f.runner.Run(ctx, f.ffmpegPath,
		"-i", opts.VideoPath,
		"-i", opts.InstrumentalPath,
		"-vf", filter,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", "faster",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		opts.OutputPath,
		"-y",
	)
	if err != nil {
		return fmt.Errorf("karaoke composition failed: %w", err)
	}
	return nil
}

// escapeFilterPath escapes backslashes and colons so a path can be
// embedded in an ffmpeg filter expression.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, "\\", "\\\\")
	return strings.ReplaceAll(escaped, ":", "\\:")
}
