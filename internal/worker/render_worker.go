package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/reelty/clipper-api/internal/client"
	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/media"
	"github.com/reelty/clipper-api/internal/model"
	"github.com/reelty/clipper-api/internal/registry"
	"github.com/reelty/clipper-api/internal/service"
	"github.com/reelty/clipper-api/internal/websocket"
)

// RenderWorker runs the post-webhook pipeline for one job: template
// application, semantic filtering, credit computation and persistence.
type RenderWorker struct {
	cfg      *config.Config
	registry *registry.Registry
	hub      *websocket.Hub
	clips    client.ClipStore
	storage  client.StorageClient
	scorer   client.ClipScorer
	engine   media.Engine
}

func NewRenderWorker(
	cfg *config.Config,
	reg *registry.Registry,
	hub *websocket.Hub,
	clips client.ClipStore,
	storage client.StorageClient,
	scorer client.ClipScorer,
	engine media.Engine,
) *RenderWorker {
	return &RenderWorker{
		cfg:      cfg,
		registry: reg,
		hub:      hub,
		clips:    clips,
		storage:  storage,
		scorer:   scorer,
		engine:   engine,
	}
}

// ProcessTask handles one render task end to end. The job is always retired
// and its event stream flushed on exit, whatever the outcome.
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload service.RenderTaskPayload
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	projectID := taskPayload.ProjectID
	log.Printf("Starting render for project %s", projectID)

	job, ok := w.registry.Get(projectID)
	if !ok {
		log.Printf("Render for project %s skipped: job already retired", projectID)
		return nil
	}
	defer func() {
		w.registry.Remove(projectID)
		w.hub.Retire(projectID)
	}()

	// Cancellation wakes up any blocking ffmpeg or HTTP call
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-job.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var payload client.ProjectPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.fail(job, model.ErrCodeProcessingError, "Invalid provider payload")
		return fmt.Errorf("failed to unmarshal provider payload: %w", err)
	}
	clips := payload.Videos

	// Template application
	if job.Template != nil && len(job.Template.Components()) > 0 {
		w.hub.SendProgress(projectID, 65, fmt.Sprintf(
			"Applying template (%s)...", strings.Join(job.Template.Components(), ", ")))
		w.applyTemplate(ctx, job, clips)
	}

	if w.checkCancelled(job) {
		return nil
	}

	// Semantic filtering against the user prompt
	if prompt, ok := filterPrompt(job.Request.Prompt); ok && hasTranscripts(clips) {
		w.hub.SendProgress(projectID, 85, "Filtering clips by relevance...")
		scores, err := w.scorer.Score(ctx, prompt, transcripts(clips))
		if err != nil {
			log.Printf("Clip scoring failed for %s, keeping all clips: %v", projectID, err)
		} else {
			clips = SelectClips(clips, scores, w.cfg.Pipeline.FilterThreshold, w.cfg.Pipeline.KeepScores)
		}
	}

	if w.checkCancelled(job) {
		return nil
	}

	// Credit computation
	credits := TotalCredits(clips)

	// Persistence is the one fatal stage
	w.hub.SendProgress(projectID, 90, "Saving clips to database...")
	recordID, err := w.clips.CreateClipRecord(ctx, job.Request.AuthToken, job.Request, credits, job.SourceDuration)
	if err == nil {
		err = w.clips.AttachClipSegments(ctx, job.Request.AuthToken, recordID, clips, credits)
	}
	if err != nil {
		log.Printf("Persistence failed for project %s: %v", projectID, err)
		w.fail(job, model.ErrCodePersistenceFailed, "Failed to store clips in database.")
		return fmt.Errorf("failed to persist clips for %s: %w", projectID, err)
	}

	// Completion
	job.SetPhase(registry.PhaseCompleted)
	w.hub.SendResult(projectID, &model.GenerateResult{
		ClipNumber:   len(clips),
		CreditUsage:  credits,
		ClipStoredID: recordID,
		Clips:        clips,
	})

	log.Printf("Render for project %s completed (%d clips, %d credits)", projectID, len(clips), credits)
	return nil
}

func (w *RenderWorker) checkCancelled(job *registry.Job) bool {
	if !job.IsCancelled() {
		return false
	}
	log.Printf("Render for project %s cancelled", job.ID)
	w.hub.SendCancelled(job.ID)
	return true
}

func (w *RenderWorker) fail(job *registry.Job, code, message string) {
	job.SetPhase(registry.PhaseFailed)
	w.hub.SendError(job.ID, code, message)
}

// applyTemplate renders every clip against the job's template. A single
// clip's failure marks that clip and moves on; it never aborts the stage.
func (w *RenderWorker) applyTemplate(ctx context.Context, job *registry.Job, clips []model.Clip) {
	tmpl := job.Template
	width, height := media.Resolution(tmpl.AspectRatio)
	fps := w.cfg.Pipeline.FrameRate

	workDir, err := os.MkdirTemp(w.cfg.Pipeline.WorkDir, "render-"+job.ID+"-")
	if err != nil {
		log.Printf("Failed to create work dir for %s: %v", job.ID, err)
		markAllFailed(clips)
		return
	}
	defer os.RemoveAll(workDir)

	assets, err := w.prepareAssets(ctx, tmpl, workDir, width, height, fps)
	if err != nil {
		log.Printf("Failed to prepare template assets for %s: %v", job.ID, err)
		markAllFailed(clips)
		return
	}

	for i := range clips {
		if job.IsCancelled() {
			return
		}
		w.hub.SendProgress(job.ID, 65+(i*20)/len(clips),
			fmt.Sprintf("Rendering clip %d/%d...", i+1, len(clips)))

		url, err := w.renderClip(ctx, job.ID, &clips[i], assets, workDir, i, width, height, fps)
		if err != nil {
			log.Printf("Clip %d/%d of project %s failed to render: %v", i+1, len(clips), job.ID, err)
			clips[i].VideoURL = model.FailedRenderMarker
			continue
		}
		clips[i].VideoURL = url
	}
}

// templateAssets holds template media already normalized to the target format
type templateAssets struct {
	intro string
	outro string
	logo  string
}

func (w *RenderWorker) prepareAssets(ctx context.Context, tmpl *model.Template, workDir string, width, height, fps int) (*templateAssets, error) {
	assets := &templateAssets{}

	prepare := func(url, name string) (string, error) {
		src, err := media.DownloadFile(ctx, url, workDir)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", name, err)
		}
		conv := filepath.Join(workDir, name+"_conv.mp4")
		if err := w.engine.Normalize(ctx, src, conv, width, height, fps); err != nil {
			return "", fmt.Errorf("normalize %s: %w", name, err)
		}
		// Silent intros/outros would break stream-count alignment at concat
		withAudio, err := w.engine.EnsureAudio(ctx, conv, filepath.Join(workDir, name+"_audio.mp4"))
		if err != nil {
			return "", fmt.Errorf("ensure audio on %s: %w", name, err)
		}
		return withAudio, nil
	}

	var err error
	if tmpl.IntroVideo != "" {
		if assets.intro, err = prepare(tmpl.IntroVideo, "intro"); err != nil {
			return nil, err
		}
	}
	if tmpl.OutroVideo != "" {
		if assets.outro, err = prepare(tmpl.OutroVideo, "outro"); err != nil {
			return nil, err
		}
	}
	if tmpl.OverlayLogo != "" {
		src, err := media.DownloadFile(ctx, tmpl.OverlayLogo, workDir)
		if err != nil {
			return nil, fmt.Errorf("download logo: %w", err)
		}
		if assets.logo, err = w.engine.EnsurePNG(ctx, src, workDir); err != nil {
			return nil, fmt.Errorf("convert logo: %w", err)
		}
	}
	return assets, nil
}

// renderClip produces one final clip and uploads it. All intermediate files
// live in a per-clip directory removed before return.
func (w *RenderWorker) renderClip(ctx context.Context, projectID string, clip *model.Clip, assets *templateAssets, workDir string, index, width, height, fps int) (string, error) {
	clipDir, err := os.MkdirTemp(workDir, fmt.Sprintf("clip%d-", index))
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(clipDir)

	src, err := media.DownloadFile(ctx, clip.VideoURL, clipDir)
	if err != nil {
		return "", fmt.Errorf("download clip: %w", err)
	}

	main := filepath.Join(clipDir, "main_conv.mp4")
	if err := w.engine.Normalize(ctx, src, main, width, height, fps); err != nil {
		return "", fmt.Errorf("normalize clip: %w", err)
	}

	final := main
	if assets.intro != "" || assets.outro != "" {
		var parts []string
		if assets.intro != "" {
			parts = append(parts, assets.intro)
		}
		parts = append(parts, main)
		if assets.outro != "" {
			parts = append(parts, assets.outro)
		}
		merged := filepath.Join(clipDir, "merged.mp4")
		if err := w.engine.Concat(ctx, parts, merged); err != nil {
			return "", fmt.Errorf("concat: %w", err)
		}
		final = merged
	}

	if assets.logo != "" {
		branded := filepath.Join(clipDir, "branded.mp4")
		if err := w.engine.OverlayLogo(ctx, final, assets.logo, branded, w.cfg.Pipeline.LogoWidth); err != nil {
			return "", fmt.Errorf("overlay logo: %w", err)
		}
		final = branded
	}

	key := fmt.Sprintf("clips/%s/final_clip_%d.mp4", projectID, index+1)
	url, err := w.storage.UploadFile(ctx, key, final)
	if err != nil {
		return "", fmt.Errorf("upload rendered clip: %w", err)
	}
	return url, nil
}

func markAllFailed(clips []model.Clip) {
	for i := range clips {
		clips[i].VideoURL = model.FailedRenderMarker
	}
}

// filterPrompt reports whether a filter prompt is actually usable. Empty,
// whitespace-only and the literal placeholder "string" all mean no filtering.
func filterPrompt(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	prompt := strings.TrimSpace(*p)
	if prompt == "" || strings.EqualFold(prompt, "string") {
		return "", false
	}
	return prompt, true
}

func hasTranscripts(clips []model.Clip) bool {
	return len(clips) > 0 && clips[0].Transcript != ""
}

func transcripts(clips []model.Clip) []string {
	texts := make([]string, len(clips))
	for i := range clips {
		texts[i] = clips[i].Transcript
	}
	return texts
}
