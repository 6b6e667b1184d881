package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/model"
)

// TemplateStore fetches template bundles from the backend
type TemplateStore interface {
	GetTemplate(ctx context.Context, templateID, authToken string) (*model.Template, error)
}

// ClipStore persists finished jobs with the backend database. Both calls use
// the bearer credential from the original request.
type ClipStore interface {
	CreateClipRecord(ctx context.Context, authToken string, req model.GenerateRequest, credits int64, mainDuration float64) (string, error)
	AttachClipSegments(ctx context.Context, authToken, recordID string, clips []model.Clip, credits int64) error
}

// BackendClient talks to the main application backend
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	return &BackendClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
	}
}

// GetTemplate fetches a template's aspect ratio and intro/outro/logo URLs
func (c *BackendClient) GetTemplate(ctx context.Context, templateID, authToken string) (*model.Template, error) {
	endpoint := fmt.Sprintf("/templates/%s", templateID)
	var result struct {
		Data model.Template `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, authToken, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch template info: %w", err)
	}
	return &result.Data, nil
}

// CreateClipRecord creates the parent job record and returns its id
func (c *BackendClient) CreateClipRecord(ctx context.Context, authToken string, req model.GenerateRequest, credits int64, mainDuration float64) (string, error) {
	body := map[string]interface{}{
		"videoSourceInNumber": req.VideoType,
		"videoSourceInName":   model.SourceName(req.VideoType),
		"videoUrl":            req.URL,
		"clipCount":           req.MaxClipNumber,
		"perClipDuration":     req.ClipLength,
		"creditUsed":          credits,
		"duration":            mainDuration,
		"langCode":            req.LangCode,
		"prompt":              req.Prompt,
		"templateId":          req.TemplateID,
	}
	var result struct {
		Data struct {
			ID ProjectID `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/makeclip/create", authToken, body, &result); err != nil {
		return "", fmt.Errorf("failed to create clip record: %w", err)
	}
	return result.Data.ID.String(), nil
}

// AttachClipSegments attaches the final clip list to an existing record
func (c *BackendClient) AttachClipSegments(ctx context.Context, authToken, recordID string, clips []model.Clip, credits int64) error {
	segments := make([]map[string]interface{}, 0, len(clips))
	for i := range clips {
		clip := &clips[i]
		segments = append(segments, map[string]interface{}{
			"viralScore":      clip.ViralScore,
			"relatedTopic":    clip.Topics(),
			"transcript":      clip.Transcript,
			"videoUrl":        clip.VideoURL,
			"clipEditorUrl":   clip.ClipEditorURL,
			"videoMsDuration": clip.VideoMsDuration,
			"videoId":         clip.VideoID,
			"title":           clip.Title,
			"viralReason":     clip.ViralReason,
		})
	}
	body := map[string]interface{}{
		"status":      "completed",
		"clip_number": len(clips),
		"creditUsed":  credits,
		"clips":       segments,
	}
	endpoint := fmt.Sprintf("/clip-segments/%s", recordID)
	if err := c.do(ctx, http.MethodPost, endpoint, authToken, body, nil); err != nil {
		return fmt.Errorf("failed to store clip segments: %w", err)
	}
	return nil
}

func (c *BackendClient) do(ctx context.Context, method, endpoint, authToken string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authToken)

	log.Printf("[Backend API] → %s %s", method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Backend API] ← %d %s %s", resp.StatusCode, method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
