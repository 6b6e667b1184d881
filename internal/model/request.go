package model

// Video source types accepted by the clipping provider
const (
	VideoTypeRemote      = 1
	VideoTypeYouTube     = 2
	VideoTypeGoogleDrive = 3
	VideoTypeVimeo       = 4
	VideoTypeStreamYard  = 5
)

// SupportedExtensions lists the remote-file extensions the pipeline accepts
var SupportedExtensions = []string{"mp4", "3gp", "avi", "mov"}

// GenerateRequest is the client request to start a clip generation job
type GenerateRequest struct {
	AuthToken     string  `json:"auth_token" validate:"required"`
	URL           string  `json:"url" validate:"required,url"`
	VideoType     int     `json:"videoType" validate:"required,min=1,max=5"`
	LangCode      string  `json:"langCode"`
	ClipLength    int     `json:"clipLength"`
	MaxClipNumber int     `json:"maxClipNumber"`
	TemplateID    *string `json:"templateId,omitempty"`
	Prompt        *string `json:"prompt,omitempty"`
}

// GenerateResponse is returned immediately after a successful submission.
// The job id is the provider's project id; further updates arrive over the
// WebSocket stream.
type GenerateResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
}

// CancelResponse acknowledges a cancellation request
type CancelResponse struct {
	Success   bool   `json:"success"`
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// SourceName maps a video source type to the name the backend stores
func SourceName(videoType int) string {
	switch videoType {
	case VideoTypeRemote:
		return "cloudinary"
	case VideoTypeYouTube:
		return "youtube"
	case VideoTypeGoogleDrive:
		return "google_drive"
	case VideoTypeVimeo:
		return "vimeo"
	case VideoTypeStreamYard:
		return "streamyard"
	default:
		return "unknown"
	}
}
