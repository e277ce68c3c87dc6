package votestate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchroom/watchroom-backend/types"
)

var now = time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func response(id int64, status types.VoteStatus, endsAt *time.Time) *types.VoteResponse {
	return &types.VoteResponse{Vote: types.Vote{ID: id, Title: "v", Status: status, EndsAt: endsAt}}
}

func TestRemainingTime(t *testing.T) {
	tests := []struct {
		name   string
		endsAt *time.Time
		want   string
	}{
		{"permanent", nil, "permanent"},
		{"passed", at(-time.Second), "expired"},
		{"exactly now", at(0), "expired"},
		{"days and hours", at(2*24*time.Hour + 5*time.Hour + 30*time.Minute), "2d 5h"},
		{"one day", at(24 * time.Hour), "1d 0h"},
		{"hours and minutes", at(3*time.Hour + 7*time.Minute + 59*time.Second), "3h 7m"},
		{"minutes only", at(42*time.Minute + 10*time.Second), "42m"},
		{"under a minute", at(30 * time.Second), "<1m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingTime(tt.endsAt, now))
		})
	}
}

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, types.VoteStatusActive, DisplayStatus(&types.Vote{Status: types.VoteStatusActive}, now))
	assert.Equal(t, types.VoteStatusExpired, DisplayStatus(&types.Vote{Status: types.VoteStatusActive, EndsAt: at(-time.Minute)}, now))
	assert.Equal(t, types.VoteStatusCompleted, DisplayStatus(&types.Vote{Status: types.VoteStatusCompleted, EndsAt: at(time.Minute)}, now))
}

func TestHasActiveVote(t *testing.T) {
	assert.False(t, HasActiveVote(nil, now))
	assert.False(t, HasActiveVote([]*types.VoteResponse{
		response(1, types.VoteStatusActive, at(-time.Second)),
		response(2, types.VoteStatusCompleted, nil),
	}, now))
	assert.True(t, HasActiveVote([]*types.VoteResponse{
		response(1, types.VoteStatusExpired, nil),
		response(2, types.VoteStatusActive, at(time.Second)),
	}, now))
}

// The client must never offer "create vote" where the server would refuse it, or the reverse.
func TestHasActiveVote_AgreesWithServer(t *testing.T) {
	offsets := []*time.Duration{nil}
	for _, d := range []time.Duration{-time.Hour, -time.Nanosecond, 0, time.Nanosecond, time.Hour} {
		d := d
		offsets = append(offsets, &d)
	}

	for _, status := range []types.VoteStatus{types.VoteStatusActive, types.VoteStatusCompleted, types.VoteStatusExpired} {
		for _, off := range offsets {
			var endsAt *time.Time
			if off != nil {
				endsAt = at(*off)
			}
			vote := types.Vote{Status: status, EndsAt: endsAt}
			serverBlocks := vote.EffectiveStatus(now) == types.VoteStatusActive
			clientBlocks := HasActiveVote([]*types.VoteResponse{{Vote: vote}}, now)
			assert.Equal(t, serverBlocks, clientBlocks, "status=%s endsAt=%v", status, endsAt)
		}
	}
}

func TestReduce(t *testing.T) {
	voted := true
	active := response(3, types.VoteStatusActive, at(90*time.Minute))
	active.UserHasVoted = &voted
	active.TotalVotes = 4

	state := Reduce([]*types.VoteResponse{
		active,
		response(2, types.VoteStatusActive, at(-time.Minute)),
		response(1, types.VoteStatusCompleted, nil),
	}, now)

	assert.True(t, state.HasActiveVote)
	require.NotNil(t, state.ActiveVoteID)
	assert.Equal(t, int64(3), *state.ActiveVoteID)
	require.Len(t, state.Votes, 3)

	assert.Equal(t, VoteView{
		ID: 3, Title: "v", Status: types.VoteStatusActive, RemainingTime: "1h 30m",
		TotalVotes: 4, UserHasVoted: true, CanVote: false,
	}, state.Votes[0])

	assert.Equal(t, types.VoteStatusExpired, state.Votes[1].Status)
	assert.Equal(t, "expired", state.Votes[1].RemainingTime)
	assert.False(t, state.Votes[1].CanVote)

	assert.Equal(t, types.VoteStatusCompleted, state.Votes[2].Status)
	assert.Equal(t, "expired", state.Votes[2].RemainingTime)
}

func TestReduce_NoActiveVote(t *testing.T) {
	state := Reduce([]*types.VoteResponse{response(1, types.VoteStatusActive, at(0))}, now)
	assert.False(t, state.HasActiveVote)
	assert.Nil(t, state.ActiveVoteID)

	empty := Reduce(nil, now)
	assert.NotNil(t, empty.Votes)
	assert.False(t, empty.HasActiveVote)
}

func TestReduce_ClosedVotesShowNoCountdown(t *testing.T) {
	tests := []struct {
		name   string
		status types.VoteStatus
		endsAt *time.Time
	}{
		{"completed early", types.VoteStatusCompleted, at(2 * time.Hour)},
		{"expired by hand", types.VoteStatusExpired, at(30 * time.Minute)},
		{"completed permanent", types.VoteStatusCompleted, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := Reduce([]*types.VoteResponse{response(1, tt.status, tt.endsAt)}, now)
			require.Len(t, state.Votes, 1)
			assert.Equal(t, tt.status, state.Votes[0].Status)
			assert.Equal(t, RemainingExpired, state.Votes[0].RemainingTime)
			assert.False(t, state.Votes[0].CanVote)
			assert.False(t, state.HasActiveVote)
		})
	}
}
