package models

import "time"

// Run represents one karaoke generation request from upload to delivery.
type Run struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Size        int64      `json:"size"`
	Stage       string     `json:"stage"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"` // 0-100, monotonically non-decreasing
	Notices     []string   `json:"notices,omitempty"`
	ErrorMsg    string     `json:"error_msg,omitempty"`
	Hints       []string   `json:"hints,omitempty"`
	Options     RunOptions `json:"options"`
	WorkDir     string     `json:"-"`
	OutputPath  string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Pipeline stage constants. Failed and Cancelled are terminal with no
// outgoing transition; every other stage may transition to either.
const (
	StageUploading        = "uploading"
	StageProbing          = "probing"
	StageExtractingAudio  = "extracting_audio"
	StageSeparatingVocals = "separating_vocals"
	StageTranscribing     = "transcribing"
	StageWritingSubtitles = "writing_subtitles"
	StageComposingVideo   = "composing_video"
	StageDone             = "done"
	StageFailed           = "failed"
	StageCancelled        = "cancelled"
)

// Run status constants.
const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
)

// RemediationHints is the fixed guidance surfaced when a run fails.
var RemediationHints = []string{
	"Use a shorter video (less than 2 minutes)",
	"Select the 2stems model instead of 4stems",
	"Use the 'tiny' transcription model",
	"Reduce the video resolution before uploading",
}
