package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/reelty/clipper-api/internal/client"
	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/model"
	"github.com/reelty/clipper-api/internal/registry"
	"github.com/reelty/clipper-api/internal/service"
	"github.com/reelty/clipper-api/internal/websocket"
)

type stubProvider struct {
	response *client.CreateProjectResponse
	err      error
}

func (s *stubProvider) CreateProject(ctx context.Context, req *client.CreateProjectRequest) (*client.CreateProjectResponse, error) {
	return s.response, s.err
}

func (s *stubProvider) QueryProject(ctx context.Context, projectID string) (*client.ProjectPayload, error) {
	return nil, errors.New("not implemented")
}

type stubTemplates struct{}

func (stubTemplates) GetTemplate(ctx context.Context, templateID, authToken string) (*model.Template, error) {
	return nil, errors.New("no templates in test")
}

type stubEnqueuer struct{}

func (stubEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

func setupApp(t *testing.T, provider *stubProvider) (*fiber.App, *registry.Registry) {
	t.Helper()
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{WebhookWaitSeconds: 5},
	}
	reg := registry.New()
	hub := websocket.NewHub()
	svc := service.NewClipService(cfg, reg, hub, provider, stubTemplates{}, nil, stubEnqueuer{}, service.NewLanguageIndex(nil))
	h := NewClipHandler(svc)

	app := fiber.New()
	ai := app.Group("/ai")
	ai.Post("/generate", h.Generate)
	ai.Post("/webhook/vizard", h.Webhook)
	ai.Post("/cancel/:projectId", h.Cancel)
	return app, reg
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("invalid JSON response %q: %v", data, err)
		}
	}
	return resp, parsed
}

func TestGenerateRejectsInvalidClipNumber(t *testing.T) {
	app, reg := setupApp(t, &stubProvider{})

	body := `{
		"auth_token": "token",
		"url": "https://www.youtube.com/watch?v=abc",
		"videoType": 2,
		"maxClipNumber": 150
	}`
	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/generate", body)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	errObj, _ := parsed["error"].(map[string]interface{})
	if errObj == nil || errObj["message"] != "clipNumber must be between 0 and 100" {
		t.Errorf("unexpected error body: %v", parsed)
	}
	if reg.Len() != 0 {
		t.Error("invalid request must not register a job")
	}
}

func TestGenerateAccepted(t *testing.T) {
	app, reg := setupApp(t, &stubProvider{
		response: &client.CreateProjectResponse{Code: client.CodeAccepted, ProjectID: "314"},
	})

	body := `{
		"auth_token": "token",
		"url": "https://www.youtube.com/watch?v=abc",
		"videoType": 2,
		"maxClipNumber": 2
	}`
	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/generate", body)

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if parsed["projectId"] != "314" {
		t.Errorf("projectId = %v", parsed["projectId"])
	}
	if reg.Len() != 1 {
		t.Error("accepted submission must register the job")
	}
}

func TestGenerateProviderRejection(t *testing.T) {
	app, _ := setupApp(t, &stubProvider{
		err: &client.ProviderRejectedError{Code: 4001, Message: "bad source"},
	})

	body := `{
		"auth_token": "token",
		"url": "https://www.youtube.com/watch?v=abc",
		"videoType": 2,
		"maxClipNumber": 2
	}`
	resp, _ := doJSON(t, app, http.MethodPost, "/ai/generate", body)

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestWebhookUnknownProjectIgnored(t *testing.T) {
	app, _ := setupApp(t, &stubProvider{})

	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/webhook/vizard",
		`{"code": 2000, "projectId": 404404}`)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("webhook must always ack with 200, got %d", resp.StatusCode)
	}
	if parsed["status"] != "ignored" || parsed["reason"] != "project_not_found" {
		t.Errorf("unexpected webhook ack: %v", parsed)
	}
}

func TestWebhookBadCodeIgnored(t *testing.T) {
	app, _ := setupApp(t, &stubProvider{})

	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/webhook/vizard",
		`{"code": 4001, "projectId": 1}`)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if parsed["status"] != "ignored" {
		t.Errorf("unexpected webhook ack: %v", parsed)
	}
}

func TestWebhookResolvesNumericIDAgainstStringJob(t *testing.T) {
	app, reg := setupApp(t, &stubProvider{
		response: &client.CreateProjectResponse{Code: client.CodeAccepted, ProjectID: "271828"},
	})

	body := `{
		"auth_token": "token",
		"url": "https://www.youtube.com/watch?v=abc",
		"videoType": 2,
		"maxClipNumber": 2
	}`
	doJSON(t, app, http.MethodPost, "/ai/generate", body)

	// Provider sends the id back as a JSON number
	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/webhook/vizard",
		`{"code": 2000, "projectId": 271828, "videos": []}`)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if parsed["status"] != "clip generation ready" {
		t.Errorf("unexpected webhook ack: %v", parsed)
	}
	if _, ok := reg.Get("271828"); !ok {
		t.Error("job lookup across id representations failed")
	}
}

func TestCancelUnknownProject(t *testing.T) {
	app, _ := setupApp(t, &stubProvider{})

	resp, _ := doJSON(t, app, http.MethodPost, "/ai/cancel/12345", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelPendingJob(t *testing.T) {
	app, _ := setupApp(t, &stubProvider{
		response: &client.CreateProjectResponse{Code: client.CodeAccepted, ProjectID: "161803"},
	})

	body := `{
		"auth_token": "token",
		"url": "https://www.youtube.com/watch?v=abc",
		"videoType": 2,
		"maxClipNumber": 2
	}`
	doJSON(t, app, http.MethodPost, "/ai/generate", body)

	resp, parsed := doJSON(t, app, http.MethodPost, "/ai/cancel/161803", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if parsed["success"] != true || parsed["status"] != "cancelled" {
		t.Errorf("unexpected cancel response: %v", parsed)
	}
}
