package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/reelty/clipper-api/internal/client"
	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/media"
	"github.com/reelty/clipper-api/internal/model"
	"github.com/reelty/clipper-api/internal/registry"
	"github.com/reelty/clipper-api/internal/websocket"
)

// TaskTypeRender is the queue task kind for the post-webhook render pipeline
const TaskTypeRender = "clips:render"

// RenderTaskPayload is what the render worker receives: the job id plus the
// provider's raw webhook body.
type RenderTaskPayload struct {
	ProjectID string          `json:"projectId"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRenderTask builds the asynq task dispatched when a webhook resolves a job
func NewRenderTask(projectID string, payload json.RawMessage) (*asynq.Task, error) {
	data, err := json.Marshal(RenderTaskPayload{
		ProjectID: projectID,
		Payload:   payload,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRender, data), nil
}

// Webhook handling outcomes
const (
	WebhookIgnored   = "ignored"
	WebhookNotFound  = "project_not_found"
	WebhookDuplicate = "duplicate"
	WebhookCancelled = "cancelled"
	WebhookAccepted  = "clip generation ready"
)

// ErrJobNotFound is returned when an operation references an unknown job id
var ErrJobNotFound = errors.New("job not found")

// TaskEnqueuer dispatches queue tasks. *asynq.Client satisfies it.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ValidationError rejects a request before any job is created
type ValidationError struct {
	Message string
	Code    string
}

func (e *ValidationError) Error() string { return e.Message }

// SubmissionError reports a synchronous rejection from the clipping provider
type SubmissionError struct {
	Reason  string
	Details interface{}
}

func (e *SubmissionError) Error() string { return e.Reason }

// ClipService orchestrates clip generation jobs: validation, provider
// submission, webhook waiting and render dispatch.
type ClipService struct {
	cfg         *config.Config
	registry    *registry.Registry
	hub         *websocket.Hub
	provider    client.ClipProvider
	templates   client.TemplateStore
	engine      media.Engine
	asynqClient TaskEnqueuer
	validate    *validator.Validate
	languages   *LanguageIndex
}

func NewClipService(
	cfg *config.Config,
	reg *registry.Registry,
	hub *websocket.Hub,
	provider client.ClipProvider,
	templates client.TemplateStore,
	engine media.Engine,
	asynqClient TaskEnqueuer,
	languages *LanguageIndex,
) *ClipService {
	return &ClipService{
		cfg:         cfg,
		registry:    reg,
		hub:         hub,
		provider:    provider,
		templates:   templates,
		engine:      engine,
		asynqClient: asynqClient,
		validate:    validator.New(),
		languages:   languages,
	}
}

// Generate validates the request, submits the source video to the clipping
// provider and registers a pending job. It returns as soon as the provider
// accepts; everything after that reaches the client over the WebSocket stream.
func (s *ClipService) Generate(ctx context.Context, req *model.GenerateRequest) (*model.GenerateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if req.MaxClipNumber < 0 || req.MaxClipNumber > 100 {
		return nil, &ValidationError{Message: "clipNumber must be between 0 and 100"}
	}

	langCode := req.LangCode
	if langCode == "" {
		langCode = "en"
	} else if code, ok := s.languages.Code(langCode); ok {
		langCode = code
	}

	// Template fetch and source probe are independent network calls
	var (
		wg             sync.WaitGroup
		template       *model.Template
		templateErr    error
		sourceDuration float64
		ext            string
		probeErr       error
	)

	if req.TemplateID != nil && *req.TemplateID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			template, templateErr = s.templates.GetTemplate(ctx, *req.TemplateID, req.AuthToken)
		}()
	}
	if req.VideoType == model.VideoTypeRemote {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sourceDuration, ext, probeErr = s.probeSource(ctx, req.URL)
		}()
	}
	wg.Wait()

	if templateErr != nil {
		return nil, &ValidationError{
			Message: fmt.Sprintf("Failed to fetch template info: %v", templateErr),
			Code:    model.ErrCodeTemplateFetchFailed,
		}
	}
	if probeErr != nil {
		var vErr *ValidationError
		if errors.As(probeErr, &vErr) {
			return nil, vErr
		}
		return nil, &ValidationError{Message: fmt.Sprintf("Failed to get video extension: %v", probeErr)}
	}

	aspectRatio := 1
	if template != nil {
		aspectRatio = client.AspectRatioCode(template.AspectRatio)
	}

	submission := &client.CreateProjectRequest{
		Lang:              langCode,
		PreferLength:      []int{req.ClipLength},
		RatioOfClip:       aspectRatio,
		MaxClipNumber:     req.MaxClipNumber,
		VideoURL:          req.URL,
		VideoType:         req.VideoType,
		IncludeTranscript: true,
		ContentAnalysis:   true,
	}
	if ext != "" {
		submission.Ext = &ext
	}

	resp, err := s.provider.CreateProject(ctx, submission)
	if err != nil {
		var rejected *client.ProviderRejectedError
		if errors.As(err, &rejected) {
			return nil, &SubmissionError{Reason: rejected.Message, Details: rejected}
		}
		return nil, &SubmissionError{Reason: "Upload failed", Details: err.Error()}
	}

	projectID := registry.CanonicalID(resp.ProjectID.String())

	normalized := *req
	normalized.LangCode = langCode
	job, err := s.registry.Create(projectID, normalized, template, sourceDuration)
	if err != nil {
		return nil, &SubmissionError{Reason: "duplicate project id from provider", Details: projectID}
	}

	s.hub.OpenStream(projectID)
	s.hub.SendProgress(projectID, 10, "Video uploaded to provider. Processing started...")

	job.SetPhase(registry.PhaseAwaitingWebhook)
	go s.awaitWebhook(job)

	log.Printf("Clip job %s submitted (videoType=%d lang=%s)", projectID, req.VideoType, langCode)

	return &model.GenerateResponse{
		Status:    "processing",
		Message:   "Processing started. Updates will be sent via WebSocket.",
		ProjectID: projectID,
	}, nil
}

// probeSource downloads a remote source file, measures its duration with
// ffprobe and validates the file extension. The temp file is always removed.
func (s *ClipService) probeSource(ctx context.Context, url string) (float64, string, error) {
	ext := media.ExtensionFromURL(url)
	if !extensionSupported(ext) {
		return 0, "", &ValidationError{
			Message: fmt.Sprintf("Unsupported video file extension: %s. Supported: %s",
				ext, strings.Join(model.SupportedExtensions, ", ")),
		}
	}

	path, err := media.DownloadFile(ctx, url, s.cfg.Pipeline.WorkDir)
	if err != nil {
		return 0, "", err
	}
	defer os.Remove(path)

	duration, err := s.engine.ProbeDuration(ctx, path)
	if err != nil {
		return 0, "", err
	}

	if max := s.cfg.Pipeline.MaxSourceDurationSec; max > 0 && duration > float64(max) {
		return 0, "", &ValidationError{
			Message: fmt.Sprintf("Video duration %.0fs exceeds the maximum of %ds", duration, max),
		}
	}
	return duration, ext, nil
}

func extensionSupported(ext string) bool {
	if ext == "" {
		return true
	}
	for _, s := range model.SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// awaitWebhook blocks one goroutine per pending job on whichever comes first:
// the webhook result, a cancellation, or the wait budget running out.
func (s *ClipService) awaitWebhook(job *registry.Job) {
	wait := time.Duration(s.cfg.Pipeline.WebhookWaitSeconds) * time.Second
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case raw := <-job.Result():
		s.dispatchRender(job, raw)

	case <-job.Done():
		s.hub.SendCancelled(job.ID)
		s.retire(job.ID)

	case <-timer.C:
		// Last resort before giving up: pull the result directly in case the
		// webhook got lost in transit
		if raw, ok := s.pullResult(job.ID); ok {
			s.registry.ResolveResult(job.ID, raw)
			s.dispatchRender(job, <-job.Result())
			return
		}
		job.SetPhase(registry.PhaseTimedOut)
		log.Printf("Clip job %s timed out waiting for webhook", job.ID)
		s.hub.SendError(job.ID, model.ErrCodeTimeout, "Webhook response took too long.")
		s.retire(job.ID)
	}
}

// dispatchRender hands a resolved result payload to the render queue
func (s *ClipService) dispatchRender(job *registry.Job, raw json.RawMessage) {
	if job.IsCancelled() {
		s.hub.SendCancelled(job.ID)
		s.retire(job.ID)
		return
	}
	job.SetPhase(registry.PhaseRendering)
	if err := s.enqueueRender(job.ID, raw); err != nil {
		log.Printf("Failed to enqueue render for %s: %v", job.ID, err)
		s.hub.SendError(job.ID, model.ErrCodeProcessingError, "Failed to start render pipeline")
		s.retire(job.ID)
	}
}

// pullResult queries the provider for a finished project. A webhook that won
// a race against the timer may already hold the result slot, which is why the
// caller resolves through the registry rather than using the payload directly.
func (s *ClipService) pullResult(projectID string) (json.RawMessage, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload, err := s.provider.QueryProject(ctx, projectID)
	if err != nil {
		log.Printf("Provider query for %s failed: %v", projectID, err)
		return nil, false
	}
	if payload.Code != client.CodeAccepted || len(payload.Videos) == 0 {
		return nil, false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	log.Printf("Recovered project %s result by polling the provider", projectID)
	s.hub.SendProgress(projectID, 60, "Provider completed processing. Finalizing...")
	return raw, true
}

func (s *ClipService) enqueueRender(projectID string, payload json.RawMessage) error {
	task, err := NewRenderTask(projectID, payload)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	// The result slot is consumed; a retry could not re-read it
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("render"),
		asynq.MaxRetry(0),
		asynq.Retention(1*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// HandleWebhook resolves a provider callback against the registry. The
// returned outcome string feeds the HTTP acknowledgement; the render pipeline
// itself runs on the worker queue, never in the webhook handler.
func (s *ClipService) HandleWebhook(payload *client.ProjectPayload, raw json.RawMessage) string {
	if payload.Code != client.CodeAccepted || payload.ProjectID == "" {
		return WebhookIgnored
	}

	projectID := registry.CanonicalID(payload.ProjectID.String())
	job, ok := s.registry.Get(projectID)
	if !ok {
		log.Printf("Webhook for unknown project %s ignored", projectID)
		return WebhookNotFound
	}

	if job.IsCancelled() {
		s.hub.SendCancelled(projectID)
		s.retire(projectID)
		return WebhookCancelled
	}

	s.hub.SendProgress(projectID, 60, "Provider completed processing. Finalizing...")

	if !s.registry.ResolveResult(projectID, raw) {
		log.Printf("Duplicate webhook for project %s rejected", projectID)
		return WebhookDuplicate
	}
	return WebhookAccepted
}

// Cancel marks a pending or in-flight job cancelled. The waiter goroutine or
// the next pipeline checkpoint observes the marker and tears the job down.
func (s *ClipService) Cancel(projectID string) (*model.CancelResponse, error) {
	id := registry.CanonicalID(projectID)
	if _, ok := s.registry.Cancel(id); !ok {
		return nil, ErrJobNotFound
	}
	log.Printf("Cancellation requested for clip job %s", id)
	return &model.CancelResponse{
		Success:   true,
		ProjectID: id,
		Status:    "cancelled",
	}, nil
}

// retire removes the job and flushes its event stream
func (s *ClipService) retire(projectID string) {
	s.registry.Remove(projectID)
	s.hub.Retire(projectID)
}
