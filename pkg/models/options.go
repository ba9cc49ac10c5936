package models

import "fmt"

// SeparationModel selects how many stems the separation engine produces.
type SeparationModel string

const (
	SeparationTwoStem  SeparationModel = "2stems"
	SeparationFourStem SeparationModel = "4stems"
)

// EngineSpec returns the model identifier passed to the separation engine.
func (m SeparationModel) EngineSpec() string {
	return "spleeter:" + string(m)
}

// ParseSeparationModel validates a user-supplied separation model name.
func ParseSeparationModel(s string) (SeparationModel, error) {
	switch SeparationModel(s) {
	case SeparationTwoStem, SeparationFourStem:
		return SeparationModel(s), nil
	case "":
		return SeparationTwoStem, nil
	}
	return "", fmt.Errorf("unknown separation model %q", s)
}

// TranscriptionModel selects the recognition engine model size.
type TranscriptionModel string

const (
	TranscriptionTiny TranscriptionModel = "tiny"
	TranscriptionBase TranscriptionModel = "base"
)

// ParseTranscriptionModel validates a user-supplied transcription model name.
func ParseTranscriptionModel(s string) (TranscriptionModel, error) {
	switch TranscriptionModel(s) {
	case TranscriptionTiny, TranscriptionBase:
		return TranscriptionModel(s), nil
	case "":
		return TranscriptionTiny, nil
	}
	return "", fmt.Errorf("unknown transcription model %q", s)
}

// Subtitle font size bounds exposed by the request form.
const (
	MinFontSize     = 12
	MaxFontSize     = 48
	DefaultFontSize = 24
)

// RunOptions holds the user-facing knobs for one karaoke run.
type RunOptions struct {
	TranscriptionModel TranscriptionModel `json:"transcription_model"`
	SeparationModel    SeparationModel    `json:"separation_model"`
	FontSize           int                `json:"font_size"`
	KeepTempFiles      bool               `json:"keep_temp_files"`
}

// Validate checks option ranges and fills defaults for zero values.
func (o *RunOptions) Validate() error {
	if o.FontSize == 0 {
		o.FontSize = DefaultFontSize
	}
	if o.FontSize < MinFontSize || o.FontSize > MaxFontSize {
		return fmt.Errorf("font size %d out of range [%d, %d]", o.FontSize, MinFontSize, MaxFontSize)
	}
	if o.TranscriptionModel == "" {
		o.TranscriptionModel = TranscriptionTiny
	}
	if o.SeparationModel == "" {
		o.SeparationModel = SeparationTwoStem
	}
	return nil
}
