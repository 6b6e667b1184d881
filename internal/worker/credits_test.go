package worker

import (
	"testing"

	"github.com/reelty/clipper-api/internal/model"
)

func TestTotalCreditsFloorsToMinutes(t *testing.T) {
	clips := []model.Clip{
		{Duration: 65},
		{Duration: 50},
	}
	// 115 seconds -> 1 credit
	if got := TotalCredits(clips); got != 1 {
		t.Errorf("TotalCredits = %d, want 1", got)
	}
}

func TestTotalCreditsPrefersMillisecondDuration(t *testing.T) {
	clips := []model.Clip{
		{VideoMsDuration: 90_000, Duration: 5},
		{VideoMsDuration: 45_000},
	}
	// 90s + 45s = 135s -> 2 credits
	if got := TotalCredits(clips); got != 2 {
		t.Errorf("TotalCredits = %d, want 2", got)
	}
}

func TestTotalCreditsUnderOneMinute(t *testing.T) {
	clips := []model.Clip{{Duration: 59.9}}
	if got := TotalCredits(clips); got != 0 {
		t.Errorf("TotalCredits = %d, want 0", got)
	}
}

func TestTotalCreditsEmpty(t *testing.T) {
	if got := TotalCredits(nil); got != 0 {
		t.Errorf("TotalCredits(nil) = %d, want 0", got)
	}
}
