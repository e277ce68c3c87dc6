package types

import (
	"fmt"
	"strings"
	"time"
)

type VoteStatus string

const (
	VoteStatusActive    VoteStatus = "active"
	VoteStatusCompleted VoteStatus = "completed"
	VoteStatusExpired   VoteStatus = "expired"
)

// IsValid reports whether s is one of the persisted vote states.
func (s VoteStatus) IsValid() bool {
	switch s {
	case VoteStatusActive, VoteStatusCompleted, VoteStatusExpired:
		return true
	}
	return false
}

type DurationUnit string

const (
	DurationUnitSeconds DurationUnit = "seconds"
	DurationUnitMinutes DurationUnit = "minutes"
	DurationUnitHours   DurationUnit = "hours"

	DefaultDurationUnit = DurationUnitHours
)

// ParseDurationUnit normalizes a client supplied unit. Empty means hours.
func ParseDurationUnit(s string) (DurationUnit, error) {
	switch u := DurationUnit(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return DefaultDurationUnit, nil
	case DurationUnitSeconds, DurationUnitMinutes, DurationUnitHours:
		return u, nil
	default:
		return "", fmt.Errorf("invalid duration unit %q: must be seconds, minutes or hours", s)
	}
}

// Span converts amount units of u into a time.Duration.
func (u DurationUnit) Span(amount float64) time.Duration {
	var base time.Duration
	switch u {
	case DurationUnitSeconds:
		base = time.Second
	case DurationUnitMinutes:
		base = time.Minute
	default:
		base = time.Hour
	}
	return time.Duration(amount * float64(base))
}

// EffectiveStatus is the status a vote reports at now. An active vote whose
// endsAt is not after now reads as expired whatever the stored value says.
// Server reads, ballot checks and the client reducer all go through here.
func EffectiveStatus(status VoteStatus, endsAt *time.Time, now time.Time) VoteStatus {
	if status == VoteStatusActive && endsAt != nil && !endsAt.After(now) {
		return VoteStatusExpired
	}
	return status
}

// IsEffectivelyActive reports whether a vote blocks creation of another vote
// in its room at now.
func IsEffectivelyActive(status VoteStatus, endsAt *time.Time, now time.Time) bool {
	return EffectiveStatus(status, endsAt, now) == VoteStatusActive
}

type Vote struct {
	ID           int64         `json:"id"`
	RoomID       string        `json:"roomId"`
	Title        string        `json:"title"`
	Description  *string       `json:"description,omitempty"`
	Duration     *float64      `json:"duration,omitempty"`
	DurationUnit *DurationUnit `json:"durationUnit,omitempty"`
	Status       VoteStatus    `json:"status"`
	CreatedBy    string        `json:"createdBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	EndsAt       *time.Time    `json:"endsAt"`
}

func (v *Vote) EffectiveStatus(now time.Time) VoteStatus {
	return EffectiveStatus(v.Status, v.EndsAt, now)
}

// HasLapsed reports whether the vote is stored as active but its end time has passed.
func (v *Vote) HasLapsed(now time.Time) bool {
	return v.Status == VoteStatusActive && v.EffectiveStatus(now) == VoteStatusExpired
}

// MediaItem is the display data of a room item referenced by a vote option.
type MediaItem struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	Year       *int    `json:"year,omitempty"`
	Genre      *string `json:"genre,omitempty"`
	PosterURL  *string `json:"posterUrl,omitempty"`
	ExternalID *string `json:"externalId,omitempty"`
}

type VoteOption struct {
	ID        int64      `json:"id"`
	VoteID    int64      `json:"voteId"`
	ItemID    int64      `json:"itemId"`
	CreatedAt time.Time  `json:"createdAt"`
	Item      *MediaItem `json:"item,omitempty"`
}

// VoteResult is one cast ballot.
type VoteResult struct {
	ID        int64     `json:"id"`
	VoteID    int64     `json:"voteId"`
	OptionID  int64     `json:"optionId"`
	VoterName *string   `json:"voterName,omitempty"`
	DeviceID  *string   `json:"deviceId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// API request types

type VoteCreate struct {
	RoomID       string   `json:"roomId"`
	Title        string   `json:"title"`
	Description  *string  `json:"description,omitempty"`
	MediaIDs     []int64  `json:"mediaIds"`
	CreatedBy    string   `json:"createdBy"`
	Duration     *float64 `json:"duration,omitempty"`
	DurationUnit string   `json:"durationUnit,omitempty"`
}

type BallotCreate struct {
	OptionID  *int64  `json:"optionId"`
	VoterName *string `json:"voterName,omitempty"`
	DeviceID  *string `json:"deviceId,omitempty"`
}

type VoteStatusUpdate struct {
	Status VoteStatus `json:"status"`
}

// API response types

type VoteCreated struct {
	VoteID int64 `json:"voteId"`
}

type BallotCreated struct {
	ResultID int64 `json:"resultId"`
}

type VoteOptionWithStats struct {
	VoteOption
	VoteCount  int  `json:"voteCount"`
	Percentage int  `json:"percentage"`
	IsWinner   bool `json:"isWinner"`
}

type VoteResponse struct {
	Vote
	Options    []VoteOptionWithStats `json:"options"`
	TotalVotes int                   `json:"totalVotes"`
	// UserHasVoted is only set when the request identified a device.
	UserHasVoted *bool `json:"userHasVoted,omitempty"`
}
