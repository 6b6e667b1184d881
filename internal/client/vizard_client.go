package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/model"
)

// CodeAccepted is the provider's numeric success code, used both on
// submission responses and webhook payloads.
const CodeAccepted = 2000

// ErrProviderUnavailable covers transport-level submission failures
var ErrProviderUnavailable = errors.New("clipping provider unavailable")

// ProviderRejectedError carries the provider's own failure code unchanged
type ProviderRejectedError struct {
	Code    int
	Message string
}

func (e *ProviderRejectedError) Error() string {
	return fmt.Sprintf("provider rejected submission (code %d): %s", e.Code, e.Message)
}

// ProjectID tolerates the provider sending job ids as JSON numbers or strings
type ProjectID string

func (p *ProjectID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = ProjectID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("projectId is neither string nor number: %s", string(b))
	}
	*p = ProjectID(n.String())
	return nil
}

func (p ProjectID) String() string { return string(p) }

// ClipProvider defines the submission gateway to the clipping service
type ClipProvider interface {
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*CreateProjectResponse, error)
	QueryProject(ctx context.Context, projectID string) (*ProjectPayload, error)
}

// CreateProjectRequest is the provider's submission body
type CreateProjectRequest struct {
	Lang              string  `json:"lang"`
	PreferLength      []int   `json:"preferLength"`
	RatioOfClip       int     `json:"ratioOfClip"`
	MaxClipNumber     int     `json:"maxClipNumber"`
	VideoURL          string  `json:"videoUrl"`
	VideoType         int     `json:"videoType"`
	IncludeTranscript bool    `json:"includeTranscript"`
	ContentAnalysis   bool    `json:"contentAnalysis"`
	Ext               *string `json:"ext"`
}

// CreateProjectResponse carries the provider's status code and assigned job id
type CreateProjectResponse struct {
	Code      int       `json:"code"`
	ProjectID ProjectID `json:"projectId"`
	Message   string    `json:"message,omitempty"`
}

// ProjectPayload is the provider's result shape, shared by the webhook body
// and the pull-style project query.
type ProjectPayload struct {
	Code      int          `json:"code"`
	ProjectID ProjectID    `json:"projectId"`
	Videos    []model.Clip `json:"videos"`
	Message   string       `json:"message,omitempty"`
}

// AspectRatioCode converts an aspect-ratio label to the provider's numeric code
func AspectRatioCode(label string) int {
	switch label {
	case "9:16":
		return 1
	case "1:1":
		return 2
	case "4:5":
		return 3
	case "16:9":
		return 4
	default:
		return 1
	}
}

// VizardClient implements ClipProvider against the Vizard open API
type VizardClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewVizardClient(cfg *config.ProviderConfig) *VizardClient {
	return &VizardClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// CreateProject submits a source video for clipping. A nil error means the
// provider accepted the job (code 2000) and assigned the returned project id.
func (c *VizardClient) CreateProject(ctx context.Context, req *CreateProjectRequest) (*CreateProjectResponse, error) {
	var result CreateProjectResponse
	if err := c.post(ctx, "/hvizard-server-front/open-api/v1/project/create", req, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if result.Code != CodeAccepted {
		return nil, &ProviderRejectedError{Code: result.Code, Message: result.Message}
	}
	return &result, nil
}

// QueryProject pulls a finished project directly, the fallback path when the
// webhook payload has to be re-fetched.
func (c *VizardClient) QueryProject(ctx context.Context, projectID string) (*ProjectPayload, error) {
	endpoint := fmt.Sprintf("/hvizard-server-front/open-api/v1/project/query/%s", projectID)
	var result ProjectPayload
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return &result, nil
}

func (c *VizardClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *VizardClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *VizardClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("VIZARDAI_API_KEY", c.apiKey)

	log.Printf("[Vizard API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Vizard API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Vizard API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("vizard API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has an API key
func (c *VizardClient) IsConfigured() bool {
	return c.apiKey != ""
}
