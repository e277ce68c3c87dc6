package models

import (
	"math"
	"sort"

	"github.com/watchroom/watchroom-backend/internal/store"
	"github.com/watchroom/watchroom-backend/types"
)

// tallyOptions derives per-option counts, percentages and winners.
// Percentages are rounded independently so they need not sum to 100.
// Every option holding the maximum count wins, as long as that maximum is positive.
func tallyOptions(tallies []*store.OptionTally) ([]types.VoteOptionWithStats, int) {
	total, top := 0, 0
	for _, t := range tallies {
		total += t.Count
		if t.Count > top {
			top = t.Count
		}
	}

	options := make([]types.VoteOptionWithStats, 0, len(tallies))
	for _, t := range tallies {
		options = append(options, types.VoteOptionWithStats{
			VoteOption: t.Option,
			VoteCount:  t.Count,
			Percentage: percentage(t.Count, total),
			IsWinner:   top > 0 && t.Count == top,
		})
	}
	return options, total
}

func percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// sortByVoteCount orders options by descending count, keeping creation order among equals.
func sortByVoteCount(options []types.VoteOptionWithStats) {
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].VoteCount > options[j].VoteCount
	})
}
