package model

import "strings"

// FailedRenderMarker replaces a clip's media URL when its template render
// failed; the clip itself is kept so the backend still records it.
const FailedRenderMarker = "render_failed"

// Clip is one provider-produced segment. The render pipeline mutates VideoURL
// in place; everything else keeps the provider's values.
type Clip struct {
	ViralScore      string  `json:"viralScore"`
	RelatedTopic    string  `json:"relatedTopic"`
	Transcript      string  `json:"transcript"`
	VideoURL        string  `json:"videoUrl"`
	ClipEditorURL   string  `json:"clipEditorUrl"`
	VideoMsDuration int64   `json:"videoMsDuration"`
	VideoID         int64   `json:"videoId"`
	Title           string  `json:"title"`
	ViralReason     string  `json:"viralReason"`
	Duration        float64 `json:"duration,omitempty"`
	Similarity      float64 `json:"similarity,omitempty"`
}

// DurationSeconds returns the clip length in seconds. The millisecond field
// is authoritative when present; the legacy seconds field is the fallback.
func (c *Clip) DurationSeconds() float64 {
	if c.VideoMsDuration > 0 {
		return float64(c.VideoMsDuration) / 1000.0
	}
	return c.Duration
}

// Topics splits the provider's comma-joined topic string
func (c *Clip) Topics() []string {
	if c.RelatedTopic == "" {
		return []string{}
	}
	return strings.Split(c.RelatedTopic, ",")
}

// Template is the intro/outro/logo bundle fetched from the backend store.
// Immutable for the duration of a job's pipeline run.
type Template struct {
	ID          string `json:"id"`
	AspectRatio string `json:"aspectRatio"`
	IntroVideo  string `json:"introVideo,omitempty"`
	OutroVideo  string `json:"outroVideo,omitempty"`
	OverlayLogo string `json:"overlayLogo,omitempty"`
}

// Components reports which template parts are present
func (t *Template) Components() []string {
	var parts []string
	if t.IntroVideo != "" {
		parts = append(parts, "intro")
	}
	if t.OutroVideo != "" {
		parts = append(parts, "outro")
	}
	if t.OverlayLogo != "" {
		parts = append(parts, "logo")
	}
	return parts
}

// GenerateResult is the final payload delivered on the result event
type GenerateResult struct {
	ClipNumber   int    `json:"clip_number"`
	CreditUsage  int64  `json:"credit_usage"`
	ClipStoredID string `json:"clip_stored_id"`
	Clips        []Clip `json:"clips"`
}
