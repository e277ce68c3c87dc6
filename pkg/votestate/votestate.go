// Package votestate derives what a client shows for a room's votes. It uses
// the same effective-status predicate as the server, so a room the client
// believes is free is a room where createVote succeeds.
package votestate

import (
	"fmt"
	"time"

	"github.com/watchroom/watchroom-backend/types"
)

const (
	RemainingPermanent = "permanent"
	RemainingExpired   = "expired"
	RemainingUnderMin  = "<1m"
)

// VoteView is the display state of one vote.
type VoteView struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	Status        types.VoteStatus `json:"status"`
	RemainingTime string           `json:"remainingTime"`
	TotalVotes    int              `json:"totalVotes"`
	UserHasVoted  bool             `json:"userHasVoted"`
	CanVote       bool             `json:"canVote"`
}

// RoomState gates the room's vote controls.
type RoomState struct {
	HasActiveVote bool       `json:"hasActiveVote"`
	ActiveVoteID  *int64     `json:"activeVoteId,omitempty"`
	Votes         []VoteView `json:"votes"`
}

// HasActiveVote reports whether any vote still blocks creation of a new one at now.
func HasActiveVote(votes []*types.VoteResponse, now time.Time) bool {
	for _, v := range votes {
		if types.IsEffectivelyActive(v.Status, v.EndsAt, now) {
			return true
		}
	}
	return false
}

// DisplayStatus is the status to render. A stale active flag shows as expired.
func DisplayStatus(vote *types.Vote, now time.Time) types.VoteStatus {
	return types.EffectiveStatus(vote.Status, vote.EndsAt, now)
}

// RemainingTime formats the time left until endsAt as "Xd Yh", "Xh Ym" or "Xm".
func RemainingTime(endsAt *time.Time, now time.Time) string {
	if endsAt == nil {
		return RemainingPermanent
	}
	left := endsAt.Sub(now)
	if left <= 0 {
		return RemainingExpired
	}

	days := int(left / (24 * time.Hour))
	hours := int(left % (24 * time.Hour) / time.Hour)
	minutes := int(left % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return RemainingUnderMin
	}
}

// Reduce folds the room's votes, as returned by the list endpoint, into display state.
func Reduce(votes []*types.VoteResponse, now time.Time) RoomState {
	state := RoomState{Votes: make([]VoteView, 0, len(votes))}
	for _, v := range votes {
		status := DisplayStatus(&v.Vote, now)
		voted := v.UserHasVoted != nil && *v.UserHasVoted

		remaining := RemainingExpired
		if status == types.VoteStatusActive {
			remaining = RemainingTime(v.EndsAt, now)
		}

		state.Votes = append(state.Votes, VoteView{
			ID:            v.ID,
			Title:         v.Title,
			Status:        status,
			RemainingTime: remaining,
			TotalVotes:    v.TotalVotes,
			UserHasVoted:  voted,
			CanVote:       status == types.VoteStatusActive && !voted,
		})

		if status == types.VoteStatusActive && !state.HasActiveVote {
			id := v.ID
			state.HasActiveVote = true
			state.ActiveVoteID = &id
		}
	}
	return state
}
