package worker

import (
	"sort"

	"github.com/reelty/clipper-api/internal/model"
)

// SelectClips keeps the clips whose similarity score meets the threshold,
// sorted by score descending. scores must be index-aligned with clips.
// Scores are dropped from the returned clips unless keepScores is set.
func SelectClips(clips []model.Clip, scores []float64, threshold float64, keepScores bool) []model.Clip {
	if len(scores) != len(clips) {
		return clips
	}

	var kept []model.Clip
	for i := range clips {
		if scores[i] >= threshold {
			c := clips[i]
			c.Similarity = scores[i]
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		return kept[a].Similarity > kept[b].Similarity
	})

	if !keepScores {
		for i := range kept {
			kept[i].Similarity = 0
		}
	}
	return kept
}
