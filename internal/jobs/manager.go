// Package jobs tracks karaoke runs in memory. Runs are ephemeral:
// nothing survives a process restart.
package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/pipeline"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// ErrNotRunning is returned when cancelling a finished run.
var ErrNotRunning = errors.New("run is not in progress")

// Manager owns the set of in-flight and finished runs. Each run is
// processed by its own goroutine; runs share nothing but the
// filesystem, so a plain map under a mutex is all the coordination
// needed.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*runState
	pipe *pipeline.Pipeline
	log  *logging.Logger
}

type runState struct {
	run    models.Run
	cancel context.CancelFunc
}

// NewManager creates an empty run registry.
func NewManager(pipe *pipeline.Pipeline, log *logging.Logger) *Manager {
	return &Manager{
		runs: make(map[string]*runState),
		pipe: pipe,
		log:  log,
	}
}

// Create registers a new run in the uploading stage.
func (m *Manager) Create(filename string, size int64, opts models.RunOptions, workDir string) models.Run {
	run := models.Run{
		ID:        uuid.New().String(),
		Filename:  filename,
		Size:      size,
		Stage:     models.StageUploading,
		Status:    models.RunStatusProcessing,
		Options:   opts,
		WorkDir:   workDir,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.runs[run.ID] = &runState{run: run}
	m.mu.Unlock()

	metrics.RunsCreatedTotal.Inc()
	return run
}

// Start launches the pipeline for a created run in its own goroutine.
func (m *Manager) Start(id, inputPath string) error {
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	state, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		cancel()
		return ErrNotFound
	}
	state.cancel = cancel
	now := time.Now()
	state.run.StartedAt = &now
	workDir := state.run.WorkDir
	opts := state.run.Options
	m.mu.Unlock()

	metrics.RunsInProgress.Inc()

	go func() {
		defer cancel()
		defer metrics.RunsInProgress.Dec()

		log := m.log.WithRunID(id)
		outputPath, err := m.pipe.Process(ctx, inputPath, workDir, opts, &reporter{m: m, id: id})
		if err != nil {
			if !opts.KeepTempFiles {
				os.RemoveAll(workDir)
			}
			if ctx.Err() != nil {
				m.finish(id, models.RunStatusCancelled, "", "run cancelled")
				log.Info("run cancelled")
			} else {
				m.finish(id, models.RunStatusFailed, "", err.Error())
				log.ErrorWithErr("run failed", err)
			}
			return
		}

		if !opts.KeepTempFiles {
			m.cleanupIntermediates(workDir)
		}
		m.finish(id, models.RunStatusCompleted, outputPath, "")
		log.Info("run completed")
	}()

	return nil
}

// Get returns a snapshot of a run.
func (m *Manager) Get(id string) (models.Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.runs[id]
	if !ok {
		return models.Run{}, false
	}
	return state.run, true
}

// Cancel stops a run before its next stage starts. The stage already
// executing is not interrupted.
func (m *Manager) Cancel(id string) error {
	// Snapshot under the lock; the run goroutine writes run.Status
	// through finish while cancels arrive.
	m.mu.RLock()
	state, ok := m.runs[id]
	var status string
	var cancel context.CancelFunc
	if ok {
		status = state.run.Status
		cancel = state.cancel
	}
	m.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	if status != models.RunStatusProcessing || cancel == nil {
		return ErrNotRunning
	}

	cancel()
	return nil
}

// Remove forgets a run and deletes its working directory unless the
// run asked to keep temporary files.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	state, ok := m.runs[id]
	if ok {
		delete(m.runs, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if state.cancel != nil {
		state.cancel()
	}
	if !state.run.Options.KeepTempFiles {
		return os.RemoveAll(state.run.WorkDir)
	}
	return nil
}

// AddNotice records a user-visible informational notice on a run.
func (m *Manager) AddNotice(id, notice string) {
	(&reporter{m: m, id: id}).AddNotice(notice)
}

// finish records the run's terminal state. Failed runs carry the fixed
// remediation hints; no recovery is attempted past this point.
func (m *Manager) finish(id, status, outputPath, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.runs[id]
	if !ok {
		return
	}

	now := time.Now()
	state.run.Status = status
	state.run.CompletedAt = &now
	state.run.OutputPath = outputPath

	switch status {
	case models.RunStatusCompleted:
		state.run.Stage = models.StageDone
	case models.RunStatusCancelled:
		// User-initiated; not a resource failure, so no hints.
		state.run.Stage = models.StageCancelled
		state.run.ErrorMsg = errMsg
	default:
		state.run.Stage = models.StageFailed
		state.run.ErrorMsg = errMsg
		state.run.Hints = models.RemediationHints
	}

	metrics.RunsCompletedTotal.WithLabelValues(status).Inc()
}

// cleanupIntermediates removes everything in the run directory except
// the output subdirectory, which must survive until delivery.
func (m *Manager) cleanupIntermediates(workDir string) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.Name() == "output" {
			continue
		}
		os.RemoveAll(filepath.Join(workDir, entry.Name()))
	}
}

// reporter feeds pipeline updates back into the registry.
type reporter struct {
	m  *Manager
	id string
}

func (r *reporter) SetStage(stage string) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, ok := r.m.runs[r.id]
	if !ok {
		return
	}
	state.run.Stage = stage
	r.m.log.LogStageEvent(r.id, stage, state.run.Progress)
}

func (r *reporter) SetProgress(progress int) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, ok := r.m.runs[r.id]
	if !ok {
		return
	}
	// Progress never moves backwards.
	if progress > state.run.Progress {
		state.run.Progress = progress
	}
}

func (r *reporter) AddNotice(notice string) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	state, ok := r.m.runs[r.id]
	if !ok {
		return
	}
	state.run.Notices = append(state.run.Notices, notice)
	r.m.log.WithRunID(r.id).Info(notice)
}
