package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/config"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/jobs"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// API holds the HTTP handler dependencies.
type API struct {
	cfg     *config.Config
	manager *jobs.Manager
	ffmpeg  *media.FFmpeg
	log     *logging.Logger
}

// healthCheck reports service liveness.
func (api *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// createKaraoke accepts a music video upload plus options and starts a
// pipeline run for it.
func (api *API) createKaraoke(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		return
	}

	if file.Size > api.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File exceeds the %d MB upload limit", api.cfg.Server.MaxUploadBytes/(1024*1024)),
		})
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workDir, err := os.MkdirTemp(api.cfg.Pipeline.TempDir, "run-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create working directory"})
		return
	}

	inputPath := filepath.Join(workDir, "input_video.mp4")
	if err := c.SaveUploadedFile(file, inputPath); err != nil {
		os.RemoveAll(workDir)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	// Reject undecodable or audio-less uploads before any stage runs.
	meta, err := api.ffmpeg.Probe(c.Request.Context(), inputPath)
	if err != nil {
		os.RemoveAll(workDir)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported or corrupt media file"})
		return
	}
	if !meta.HasAudio() {
		os.RemoveAll(workDir)
		c.JSON(http.StatusBadRequest, gin.H{"error": "The uploaded file has no audio stream"})
		return
	}

	metrics.UploadSizeBytes.Observe(float64(file.Size))

	run := api.manager.Create(file.Filename, file.Size, opts, workDir)

	if file.Size > api.cfg.Pipeline.WarnUploadBytes {
		api.manager.AddNotice(run.ID, fmt.Sprintf(
			"File size is %.1fMB. Large files may cause memory issues.",
			float64(file.Size)/1024/1024))
	}

	if err := api.manager.Start(run.ID, inputPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	run, _ = api.manager.Get(run.ID)
	c.JSON(http.StatusAccepted, run)
}

// getJob returns the current status of a run.
func (api *API) getJob(c *gin.Context) {
	run, ok := api.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// cancelJob prevents a run's next stage from starting. The stage
// currently executing is not interrupted.
func (api *API) cancelJob(c *gin.Context) {
	err := api.manager.Cancel(c.Param("id"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, jobs.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Job is not in progress"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Cancellation requested"})
	}
}

// downloadResult serves the finished karaoke video.
func (api *API) downloadResult(c *gin.Context) {
	run, ok := api.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if run.Status != models.RunStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Job has not completed", "status": run.Status})
		return
	}

	c.FileAttachment(run.OutputPath, "karaoke_video.mp4")
}

// deleteJob forgets a run and removes its working directory.
func (api *API) deleteJob(c *gin.Context) {
	if err := api.manager.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}

// parseOptions reads the recognized form options, applying defaults for
// omitted values.
func parseOptions(c *gin.Context) (models.RunOptions, error) {
	var opts models.RunOptions
	var err error

	if opts.TranscriptionModel, err = models.ParseTranscriptionModel(c.PostForm("transcription_model")); err != nil {
		return opts, err
	}
	if opts.SeparationModel, err = models.ParseSeparationModel(c.PostForm("separation_model")); err != nil {
		return opts, err
	}
	if raw := c.PostForm("font_size"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &opts.FontSize); err != nil {
			return opts, fmt.Errorf("invalid font size %q", raw)
		}
	}
	opts.KeepTempFiles = c.PostForm("keep_temp_files") == "true"

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
