package types

import (
	"context"
	"encoding/json"
	"time"

	"github.com/watchroom/watchroom-backend/errors"
)

type EventType string

const (
	CategoryVote   = "VOTE"
	CategoryBallot = "BALLOT"
)

const (
	EventTypeVoteCreated       EventType = CategoryVote + "_CREATED"
	EventTypeVoteStatusUpdated EventType = CategoryVote + "_STATUS_UPDATED"
	EventTypeVoteExpired       EventType = CategoryVote + "_EXPIRED"
	EventTypeVoteDeleted       EventType = CategoryVote + "_DELETED"
	EventTypeBallotCast        EventType = CategoryBallot + "_CAST"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

type EventMetadata struct {
	CorrelationID string            `json:"correlationId,omitempty"`
	Source        string            `json:"source"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Event is the envelope handed to external notifiers.
type Event struct {
	BaseEvent
	Metadata EventMetadata   `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

func (e Event) Validate() error {
	if e.ID == "" {
		return errors.ValidationFailed("invalid event", "event ID is required")
	}
	if e.Type == "" {
		return errors.ValidationFailed("invalid event", "event type is required")
	}
	if e.RoomID == "" {
		return errors.ValidationFailed("invalid event", "room ID is required")
	}
	if e.Timestamp.IsZero() {
		return errors.ValidationFailed("invalid event", "timestamp is required")
	}
	return nil
}

// EventPublisher fans room events out to whoever delivers notifications.
type EventPublisher interface {
	Publish(ctx context.Context, roomID string, event Event) error
	Subscribe(ctx context.Context, roomID string, subscriberID string, filters ...EventType) (<-chan Event, error)
	Unsubscribe(ctx context.Context, roomID string, subscriberID string) error
}

type VoteCreatedEvent struct {
	VoteID    int64      `json:"voteId"`
	Title     string     `json:"title"`
	CreatedBy string     `json:"createdBy"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
}

type VoteStatusUpdatedEvent struct {
	VoteID int64      `json:"voteId"`
	Status VoteStatus `json:"status"`
}

type VoteDeletedEvent struct {
	VoteID int64 `json:"voteId"`
}

type BallotCastEvent struct {
	VoteID   int64 `json:"voteId"`
	OptionID int64 `json:"optionId"`
	ResultID int64 `json:"resultId"`
}
