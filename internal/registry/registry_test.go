package registry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/reelty/clipper-api/internal/model"
)

func testRequest() model.GenerateRequest {
	return model.GenerateRequest{
		AuthToken: "token",
		URL:       "https://cdn.example.com/video.mp4",
		VideoType: model.VideoTypeRemote,
		LangCode:  "en",
	}
}

func TestCanonicalID(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"string", "12345", "12345"},
		{"int", 12345, "12345"},
		{"int64", int64(12345), "12345"},
		{"float", float64(12345), "12345"},
		{"float fraction", 123.5, "123.5"},
		{"json number", json.Number("12345"), "12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanonicalID(tc.in); got != tc.want {
				t.Errorf("CanonicalID(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	r := New()
	if _, err := r.Create("p1", testRequest(), nil, 0); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := r.Create("p1", testRequest(), nil, 0); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestGetNormalizesIDRepresentation(t *testing.T) {
	r := New()
	if _, err := r.Create(float64(98765), testRequest(), nil, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, ok := r.Get("98765"); !ok {
		t.Error("string lookup of numerically created job failed")
	}
	if _, ok := r.Get(98765); !ok {
		t.Error("int lookup of numerically created job failed")
	}
}

func TestResolveResultExactlyOnce(t *testing.T) {
	r := New()
	job, err := r.Create("p1", testRequest(), nil, 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.ResolveResult("p1", json.RawMessage(`{"code":2000}`))
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one successful resolve, got %d", wins)
	}

	select {
	case raw := <-job.Result():
		if string(raw) != `{"code":2000}` {
			t.Errorf("unexpected payload: %s", raw)
		}
	default:
		t.Error("result channel empty after resolve")
	}
}

func TestResolveResultUnknownJob(t *testing.T) {
	r := New()
	if r.ResolveResult("missing", json.RawMessage(`{}`)) {
		t.Error("resolve of unknown job should return false")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	if _, err := r.Create("p1", testRequest(), nil, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	r.Remove("p1")
	r.Remove("p1")
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d entries", r.Len())
	}
}

func TestPhaseTransitionsAreForwardOnly(t *testing.T) {
	r := New()
	job, _ := r.Create("p1", testRequest(), nil, 0)

	if !job.SetPhase(PhaseAwaitingWebhook) {
		t.Error("submitted -> awaiting_webhook should succeed")
	}
	if job.SetPhase(PhaseSubmitted) {
		t.Error("awaiting_webhook -> submitted should be rejected")
	}
	if !job.SetPhase(PhaseRendering) {
		t.Error("awaiting_webhook -> rendering should succeed")
	}
	if !job.SetPhase(PhaseCompleted) {
		t.Error("rendering -> completed should succeed")
	}
	if job.SetPhase(PhaseCancelled) {
		t.Error("terminal phase must not change")
	}
}

func TestCancelFromAnyNonTerminalPhase(t *testing.T) {
	r := New()
	job, _ := r.Create("p1", testRequest(), nil, 0)
	job.SetPhase(PhaseAwaitingWebhook)

	cancelled, ok := r.Cancel("p1")
	if !ok {
		t.Fatal("cancel of pending job failed")
	}
	if !cancelled.IsCancelled() {
		t.Error("cancel marker not set")
	}
	if cancelled.Phase() != PhaseCancelled {
		t.Errorf("expected cancelled phase, got %s", cancelled.Phase())
	}

	select {
	case <-job.Done():
	default:
		t.Error("cancel channel not closed")
	}

	// Second cancel must not panic on the sync.Once channel close
	if _, ok := r.Cancel("p1"); !ok {
		t.Error("repeated cancel of live job should still find it")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	r := New()
	if _, ok := r.Cancel("missing"); ok {
		t.Error("cancel of unknown job should report not found")
	}
}
