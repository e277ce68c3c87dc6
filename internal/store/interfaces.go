package store

import (
	"context"
	"time"

	"github.com/watchroom/watchroom-backend/types"
)

// OptionTally is a vote option together with the number of ballots cast for it.
type OptionTally struct {
	Option types.VoteOption
	Count  int
}

// BallotContext is everything a ballot submission has to check, read in one round trip.
// Option is nil when the option does not belong to the vote; PriorResultID is
// non-nil when the device has already voted.
type BallotContext struct {
	Vote          *types.Vote
	Option        *types.VoteOption
	PriorResultID *int64
}

// VoteStore persists votes, their options and ballots.
//
// Two invariants are enforced by the database rather than by callers: at most
// one active vote per room (ErrActiveVoteExists) and at most one ballot per
// vote and device (ErrAlreadyVoted).
type VoteStore interface {
	// ExpireLapsedVotes flips every active vote whose end time is at or before
	// now to expired. An empty roomID sweeps all rooms.
	ExpireLapsedVotes(ctx context.Context, roomID string, now time.Time) (int64, error)
	// CreateVoteWithOptions sweeps the room and inserts the vote and one option
	// per item in a single transaction.
	CreateVoteWithOptions(ctx context.Context, vote *types.Vote, itemIDs []int64, now time.Time) (int64, error)
	GetVote(ctx context.Context, id int64) (*types.Vote, error)
	GetActiveVote(ctx context.Context, roomID string) (*types.Vote, error)
	ListVotesByRoom(ctx context.Context, roomID string) ([]*types.Vote, error)
	// ListOptionTallies returns each vote's options with ballot counts, keyed
	// by vote ID. Every requested ID is present, possibly with no options.
	ListOptionTallies(ctx context.Context, voteIDs []int64) (map[int64][]*OptionTally, error)
	// ListDeviceVotes reports, per requested vote ID, whether deviceID has a ballot on it.
	ListDeviceVotes(ctx context.Context, voteIDs []int64, deviceID string) (map[int64]bool, error)
	GetBallotContext(ctx context.Context, voteID, optionID int64, deviceID *string) (*BallotContext, error)
	CreateVoteResult(ctx context.Context, result *types.VoteResult) (int64, error)
	// ExpireVote marks a single vote expired if it is still stored as active.
	ExpireVote(ctx context.Context, id int64) error
	UpdateVoteStatus(ctx context.Context, id int64, status types.VoteStatus) error
	DeleteVote(ctx context.Context, id int64) error
}

// ItemStore resolves room items referenced by vote options.
type ItemStore interface {
	GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]*types.MediaItem, error)
}
