package worker

import (
	"math"

	"github.com/reelty/clipper-api/internal/model"
)

// TotalCredits bills one credit per whole minute of clip footage
func TotalCredits(clips []model.Clip) int64 {
	var total float64
	for i := range clips {
		total += clips[i].DurationSeconds()
	}
	return int64(math.Floor(total / 60))
}
