package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelty/clipper-api/internal/config"
)

func TestProjectIDAcceptsStringAndNumber(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"projectId": "12345"}`, "12345"},
		{"number", `{"projectId": 12345}`, "12345"},
		{"large number", `{"projectId": 9007199254740993}`, "9007199254740993"},
		{"padded string", `{"projectId": " 12345 "}`, "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp CreateProjectResponse
			if err := json.Unmarshal([]byte(tc.body), &resp); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if resp.ProjectID.String() != tc.want {
				t.Errorf("projectId = %q, want %q", resp.ProjectID, tc.want)
			}
		})
	}
}

func TestCreateProjectSuccess(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("VIZARDAI_API_KEY")
		if r.URL.Path != "/hvizard-server-front/open-api/v1/project/create" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.VideoType != 2 || req.MaxClipNumber != 3 {
			t.Errorf("request not propagated: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":      2000,
			"projectId": 555777,
		})
	}))
	defer srv.Close()

	c := NewVizardClient(&config.ProviderConfig{APIKey: "secret", BaseURL: srv.URL})
	resp, err := c.CreateProject(context.Background(), &CreateProjectRequest{
		Lang:          "en",
		PreferLength:  []int{1},
		RatioOfClip:   1,
		MaxClipNumber: 3,
		VideoURL:      "https://www.youtube.com/watch?v=abc",
		VideoType:     2,
	})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if resp.ProjectID.String() != "555777" {
		t.Errorf("projectId = %q", resp.ProjectID)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestCreateProjectRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    4001,
			"message": "unsupported video",
		})
	}))
	defer srv.Close()

	c := NewVizardClient(&config.ProviderConfig{APIKey: "secret", BaseURL: srv.URL})
	_, err := c.CreateProject(context.Background(), &CreateProjectRequest{VideoType: 2})

	var rejected *ProviderRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected ProviderRejectedError, got %v", err)
	}
	if rejected.Code != 4001 || rejected.Message != "unsupported video" {
		t.Errorf("provider error not propagated: %+v", rejected)
	}
}

func TestCreateProjectTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewVizardClient(&config.ProviderConfig{APIKey: "secret", BaseURL: srv.URL})
	_, err := c.CreateProject(context.Background(), &CreateProjectRequest{VideoType: 2})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestAspectRatioCode(t *testing.T) {
	cases := map[string]int{
		"9:16":  1,
		"1:1":   2,
		"4:5":   3,
		"16:9":  4,
		"other": 1,
	}
	for label, want := range cases {
		if got := AspectRatioCode(label); got != want {
			t.Errorf("AspectRatioCode(%q) = %d, want %d", label, got, want)
		}
	}
}
