package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteStatus_IsValid(t *testing.T) {
	assert.True(t, VoteStatusActive.IsValid())
	assert.True(t, VoteStatusCompleted.IsValid())
	assert.True(t, VoteStatusExpired.IsValid())
	assert.False(t, VoteStatus("closed").IsValid())
	assert.False(t, VoteStatus("").IsValid())
}

func TestParseDurationUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    DurationUnit
		wantErr bool
	}{
		{"", DurationUnitHours, false},
		{"seconds", DurationUnitSeconds, false},
		{" Minutes ", DurationUnitMinutes, false},
		{"HOURS", DurationUnitHours, false},
		{"days", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDurationUnit(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDurationUnit_Span(t *testing.T) {
	assert.Equal(t, 3*time.Second, DurationUnitSeconds.Span(3))
	assert.Equal(t, 90*time.Second, DurationUnitMinutes.Span(1.5))
	assert.Equal(t, 2*time.Hour, DurationUnitHours.Span(2))
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	tests := []struct {
		name   string
		status VoteStatus
		endsAt *time.Time
		want   VoteStatus
	}{
		{"permanent active", VoteStatusActive, nil, VoteStatusActive},
		{"active before end", VoteStatusActive, &future, VoteStatusActive},
		{"active after end", VoteStatusActive, &past, VoteStatusExpired},
		{"active exactly at end", VoteStatusActive, &now, VoteStatusExpired},
		{"completed after end stays completed", VoteStatusCompleted, &past, VoteStatusCompleted},
		{"expired without end", VoteStatusExpired, nil, VoteStatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveStatus(tt.status, tt.endsAt, now))
			assert.Equal(t, tt.want == VoteStatusActive, IsEffectivelyActive(tt.status, tt.endsAt, now))
		})
	}
}

func TestVote_HasLapsed(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	v := &Vote{Status: VoteStatusActive, EndsAt: &past}
	assert.True(t, v.HasLapsed(now))

	v.Status = VoteStatusExpired
	assert.False(t, v.HasLapsed(now))

	v = &Vote{Status: VoteStatusActive}
	assert.False(t, v.HasLapsed(now))
}
