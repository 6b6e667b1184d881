package model

import (
	"encoding/json"
	"testing"
)

func TestDurationSecondsPrecedence(t *testing.T) {
	c := Clip{VideoMsDuration: 38827, Duration: 99}
	if got := c.DurationSeconds(); got != 38.827 {
		t.Errorf("DurationSeconds = %v, want 38.827", got)
	}

	legacy := Clip{Duration: 41.5}
	if got := legacy.DurationSeconds(); got != 41.5 {
		t.Errorf("DurationSeconds legacy = %v, want 41.5", got)
	}
}

func TestTopicsSplitsCommaString(t *testing.T) {
	c := Clip{RelatedTopic: "feminism,gender equality,misconceptions"}
	topics := c.Topics()
	if len(topics) != 3 || topics[1] != "gender equality" {
		t.Errorf("Topics = %v", topics)
	}

	empty := Clip{}
	if len(empty.Topics()) != 0 {
		t.Error("empty topic string should yield no topics")
	}
}

func TestTemplateComponents(t *testing.T) {
	full := Template{IntroVideo: "i", OutroVideo: "o", OverlayLogo: "l"}
	if got := len(full.Components()); got != 3 {
		t.Errorf("full template components = %d, want 3", got)
	}

	logoOnly := Template{OverlayLogo: "l"}
	parts := logoOnly.Components()
	if len(parts) != 1 || parts[0] != "logo" {
		t.Errorf("logo-only components = %v", parts)
	}
}

func TestSimilarityOmittedWhenStripped(t *testing.T) {
	data, err := json.Marshal(Clip{Title: "t", Similarity: 0})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["similarity"]; ok {
		t.Error("zero similarity should be omitted from JSON")
	}
}
