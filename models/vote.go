package models

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/watchroom/watchroom-backend/errors"
	"github.com/watchroom/watchroom-backend/internal/store"
	"github.com/watchroom/watchroom-backend/internal/utils"
	"github.com/watchroom/watchroom-backend/logger"
	"github.com/watchroom/watchroom-backend/types"
)

// VoteModel owns the vote lifecycle: the one-active-vote rule, lazy and
// just-in-time expiration, ballots and derived tallies. Every vote mutation
// goes through here.
type VoteModel struct {
	store     store.VoteStore
	items     store.ItemStore
	publisher types.EventPublisher
	metrics   *voteMetrics
	now       func() time.Time
}

// NewVoteModel wires the model. items and publisher may be nil; options are
// then left undecorated and no events are emitted.
func NewVoteModel(voteStore store.VoteStore, items store.ItemStore, publisher types.EventPublisher) *VoteModel {
	return &VoteModel{
		store:     voteStore,
		items:     items,
		publisher: publisher,
		metrics:   getVoteMetrics(),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (vm *VoteModel) WithClock(now func() time.Time) *VoteModel {
	vm.now = now
	return vm
}

// ResolveExpiredVotes persists expired for every active vote whose end time
// has passed, in one room or, for an empty roomID, everywhere. Idempotent.
func (vm *VoteModel) ResolveExpiredVotes(ctx context.Context, roomID string) (int64, error) {
	n, err := vm.store.ExpireLapsedVotes(ctx, roomID, vm.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		vm.metrics.expired.WithLabelValues("sweep").Add(float64(n))
		logger.GetLogger().Debugw("Expired lapsed votes", "roomId", roomID, "count", n)
	}
	return n, nil
}

// CreateVote opens a new vote in a room that has no active vote.
func (vm *VoteModel) CreateVote(ctx context.Context, req *types.VoteCreate) (*types.VoteCreated, error) {
	log := logger.GetLogger()

	unit, err := validateVoteCreate(req)
	if err != nil {
		return nil, err
	}

	// Expiration bookkeeping must be confirmed before the active-vote check.
	if _, err := vm.ResolveExpiredVotes(ctx, req.RoomID); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	now := vm.now()
	existing, err := vm.store.GetActiveVote(ctx, req.RoomID)
	switch {
	case err == nil && existing.EffectiveStatus(now) == types.VoteStatusActive:
		vm.metrics.conflicts.Inc()
		return nil, errors.ActiveVoteConflict(existing.ID, existing.Title, existing.CreatedBy)
	case err != nil && !stderrors.Is(err, store.ErrNotFound):
		return nil, errors.NewDatabaseError(err)
	}

	vote := &types.Vote{
		RoomID:      req.RoomID,
		Title:       req.Title,
		Description: req.Description,
		Status:      types.VoteStatusActive,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
	}
	if req.Duration != nil {
		endsAt := now.Add(unit.Span(*req.Duration))
		vote.Duration = req.Duration
		vote.DurationUnit = &unit
		vote.EndsAt = &endsAt
	}

	voteID, err := vm.store.CreateVoteWithOptions(ctx, vote, req.MediaIDs, now)
	if err != nil {
		if stderrors.Is(err, store.ErrActiveVoteExists) {
			return nil, vm.activeVoteConflict(ctx, req.RoomID)
		}
		return nil, errors.NewDatabaseError(err)
	}
	vm.metrics.created.Inc()

	log.Infow("Vote created", "voteId", voteID, "roomId", req.RoomID, "options", len(req.MediaIDs))
	vm.publishEvent(ctx, types.EventTypeVoteCreated, req.RoomID, types.VoteCreatedEvent{
		VoteID:    voteID,
		Title:     req.Title,
		CreatedBy: req.CreatedBy,
		EndsAt:    vote.EndsAt,
	})

	return &types.VoteCreated{VoteID: voteID}, nil
}

// ListRoomVotes returns every vote of the room, newest first, with tallies.
// A failed sweep is logged and the read continues; statuses are still
// reported effectively.
func (vm *VoteModel) ListRoomVotes(ctx context.Context, roomID string, deviceID *string) ([]*types.VoteResponse, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, errors.ValidationFailed("Invalid request", "roomId is required")
	}

	if _, err := vm.ResolveExpiredVotes(ctx, roomID); err != nil {
		logger.GetLogger().Warnw("Failed to resolve expired votes, continuing with read", "roomId", roomID, "error", err)
	}

	votes, err := vm.store.ListVotesByRoom(ctx, roomID)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	return vm.buildVoteResponses(ctx, votes, utils.TrimToPtr(deviceID), vm.now())
}

// GetVote returns one vote with options ordered by descending vote count.
func (vm *VoteModel) GetVote(ctx context.Context, voteID int64, deviceID *string) (*types.VoteResponse, error) {
	vote, err := vm.getVote(ctx, voteID)
	if err != nil {
		return nil, err
	}

	responses, err := vm.buildVoteResponses(ctx, []*types.Vote{vote}, utils.TrimToPtr(deviceID), vm.now())
	if err != nil {
		return nil, err
	}
	resp := responses[0]
	sortByVoteCount(resp.Options)
	return resp, nil
}

// SubmitBallot records one ballot. A device gets one ballot per vote.
func (vm *VoteModel) SubmitBallot(ctx context.Context, voteID int64, req *types.BallotCreate) (*types.BallotCreated, error) {
	log := logger.GetLogger()

	if req.OptionID == nil {
		return nil, errors.ValidationFailed("Invalid ballot", "optionId is required")
	}
	optionID := *req.OptionID
	deviceID := utils.TrimToPtr(req.DeviceID)

	bc, err := vm.store.GetBallotContext(ctx, voteID, optionID, deviceID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			vm.metrics.ballots.WithLabelValues(ballotNotFound).Inc()
			return nil, errors.NotFound("Vote", voteID)
		}
		return nil, errors.NewDatabaseError(err)
	}
	if bc.Option == nil {
		vm.metrics.ballots.WithLabelValues(ballotNotFound).Inc()
		return nil, errors.NotFound("Vote option", optionID)
	}

	vote := bc.Vote
	if vote.Status != types.VoteStatusActive {
		vm.metrics.ballots.WithLabelValues(ballotNotActive).Inc()
		return nil, errors.VoteStateError(errors.CodeVoteNotActive, "Vote is not active")
	}

	now := vm.now()
	if vote.HasLapsed(now) {
		vm.expireJustInTime(ctx, vote)
		vm.metrics.ballots.WithLabelValues(ballotExpired).Inc()
		return nil, errors.VoteStateError(errors.CodeVoteExpired, "Vote has expired")
	}

	if bc.PriorResultID != nil {
		vm.metrics.ballots.WithLabelValues(ballotAlreadyVoted).Inc()
		return nil, errors.VoteStateError(errors.CodeAlreadyVoted, "This device has already voted")
	}

	resultID, err := vm.store.CreateVoteResult(ctx, &types.VoteResult{
		VoteID:    voteID,
		OptionID:  optionID,
		VoterName: utils.TrimToPtr(req.VoterName),
		DeviceID:  deviceID,
		CreatedAt: now,
	})
	if err != nil {
		switch {
		case stderrors.Is(err, store.ErrAlreadyVoted):
			// lost the race against a concurrent ballot from the same device
			vm.metrics.ballots.WithLabelValues(ballotAlreadyVoted).Inc()
			return nil, errors.VoteStateError(errors.CodeAlreadyVoted, "This device has already voted")
		case stderrors.Is(err, store.ErrNotFound):
			vm.metrics.ballots.WithLabelValues(ballotNotFound).Inc()
			return nil, errors.NotFound("Vote", voteID)
		}
		return nil, errors.NewDatabaseError(err)
	}
	vm.metrics.ballots.WithLabelValues(ballotAccepted).Inc()

	log.Debugw("Ballot recorded", "voteId", voteID, "optionId", optionID, "resultId", resultID)
	vm.publishEvent(ctx, types.EventTypeBallotCast, vote.RoomID, types.BallotCastEvent{
		VoteID:   voteID,
		OptionID: optionID,
		ResultID: resultID,
	})

	return &types.BallotCreated{ResultID: resultID}, nil
}

// UpdateVoteStatus is an administrative overwrite. It does not re-check the
// room for other active votes; the database still refuses to hold two.
func (vm *VoteModel) UpdateVoteStatus(ctx context.Context, voteID int64, status types.VoteStatus) error {
	if !status.IsValid() {
		return errors.ValidationFailed("Invalid status",
			fmt.Sprintf("status must be one of %s, %s, %s", types.VoteStatusActive, types.VoteStatusCompleted, types.VoteStatusExpired))
	}

	vote, err := vm.getVote(ctx, voteID)
	if err != nil {
		return err
	}

	err = vm.store.UpdateVoteStatus(ctx, voteID, status)
	if stderrors.Is(err, store.ErrActiveVoteExists) {
		// The blocking vote may only be active on paper.
		if n, sweepErr := vm.ResolveExpiredVotes(ctx, vote.RoomID); sweepErr == nil && n > 0 {
			err = vm.store.UpdateVoteStatus(ctx, voteID, status)
		}
	}
	if err != nil {
		switch {
		case stderrors.Is(err, store.ErrNotFound):
			return errors.NotFound("Vote", voteID)
		case stderrors.Is(err, store.ErrActiveVoteExists):
			return vm.activeVoteConflict(ctx, vote.RoomID)
		}
		return errors.NewDatabaseError(err)
	}

	logger.GetLogger().Infow("Vote status overwritten", "voteId", voteID, "from", vote.Status, "to", status)
	vm.publishEvent(ctx, types.EventTypeVoteStatusUpdated, vote.RoomID, types.VoteStatusUpdatedEvent{
		VoteID: voteID,
		Status: status,
	})
	return nil
}

// DeleteVote removes the vote together with its options and ballots.
func (vm *VoteModel) DeleteVote(ctx context.Context, voteID int64) error {
	vote, err := vm.getVote(ctx, voteID)
	if err != nil {
		return err
	}

	if err := vm.store.DeleteVote(ctx, voteID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NotFound("Vote", voteID)
		}
		return errors.NewDatabaseError(err)
	}

	logger.GetLogger().Infow("Vote deleted", "voteId", voteID, "roomId", vote.RoomID)
	vm.publishEvent(ctx, types.EventTypeVoteDeleted, vote.RoomID, types.VoteDeletedEvent{VoteID: voteID})
	return nil
}

func (vm *VoteModel) getVote(ctx context.Context, voteID int64) (*types.Vote, error) {
	vote, err := vm.store.GetVote(ctx, voteID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("Vote", voteID)
		}
		return nil, errors.NewDatabaseError(err)
	}
	return vote, nil
}

// buildVoteResponses attaches tallies, item metadata and the device's ballot
// state. The reads are batched across votes, so a room costs the same number
// of queries however many votes it holds. Reported statuses are effective at now.
func (vm *VoteModel) buildVoteResponses(ctx context.Context, votes []*types.Vote, deviceID *string, now time.Time) ([]*types.VoteResponse, error) {
	responses := make([]*types.VoteResponse, 0, len(votes))
	if len(votes) == 0 {
		return responses, nil
	}

	ids := make([]int64, 0, len(votes))
	for _, vote := range votes {
		ids = append(ids, vote.ID)
	}

	talliesByVote, err := vm.store.ListOptionTallies(ctx, ids)
	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	var voted map[int64]bool
	if deviceID != nil {
		if voted, err = vm.store.ListDeviceVotes(ctx, ids, *deviceID); err != nil {
			return nil, errors.NewDatabaseError(err)
		}
	}

	vm.decorateOptions(ctx, ids, talliesByVote)

	for _, vote := range votes {
		options, total := tallyOptions(talliesByVote[vote.ID])
		resp := &types.VoteResponse{
			Vote:       *vote,
			Options:    options,
			TotalVotes: total,
		}
		resp.Status = vote.EffectiveStatus(now)
		if deviceID != nil {
			hasVoted := voted[vote.ID]
			resp.UserHasVoted = &hasVoted
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// decorateOptions fills in item metadata with one lookup for all votes.
// Lookup failures never fail the read.
func (vm *VoteModel) decorateOptions(ctx context.Context, voteIDs []int64, talliesByVote map[int64][]*store.OptionTally) {
	if vm.items == nil {
		return
	}

	seen := make(map[int64]bool)
	itemIDs := make([]int64, 0)
	for _, voteID := range voteIDs {
		for _, t := range talliesByVote[voteID] {
			if !seen[t.Option.ItemID] {
				seen[t.Option.ItemID] = true
				itemIDs = append(itemIDs, t.Option.ItemID)
			}
		}
	}
	if len(itemIDs) == 0 {
		return
	}

	items, err := vm.items.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		logger.GetLogger().Warnw("Failed to load items for vote options", "voteIds", voteIDs, "error", err)
		return
	}
	for _, tallies := range talliesByVote {
		for _, t := range tallies {
			t.Option.Item = items[t.Option.ItemID]
		}
	}
}

// expireJustInTime persists the lapse observed by a ballot. The ballot is
// rejected whether or not the write succeeds.
func (vm *VoteModel) expireJustInTime(ctx context.Context, vote *types.Vote) {
	if err := vm.store.ExpireVote(ctx, vote.ID); err != nil {
		logger.GetLogger().Warnw("Failed to persist vote expiration", "voteId", vote.ID, "error", err)
		return
	}
	vm.metrics.expired.WithLabelValues("ballot").Inc()
	vm.publishEvent(ctx, types.EventTypeVoteExpired, vote.RoomID, types.VoteStatusUpdatedEvent{
		VoteID: vote.ID,
		Status: types.VoteStatusExpired,
	})
}

// activeVoteConflict re-reads the room's active vote so the caller can say
// who is already running one.
func (vm *VoteModel) activeVoteConflict(ctx context.Context, roomID string) error {
	vm.metrics.conflicts.Inc()
	existing, err := vm.store.GetActiveVote(ctx, roomID)
	if err != nil {
		logger.GetLogger().Warnw("Failed to load conflicting vote", "roomId", roomID, "error", err)
		return errors.NewConflictError("Room already has an active vote", "")
	}
	return errors.ActiveVoteConflict(existing.ID, existing.Title, existing.CreatedBy)
}

func (vm *VoteModel) publishEvent(ctx context.Context, eventType types.EventType, roomID string, payload interface{}) {
	if vm.publisher == nil {
		return
	}
	log := logger.GetLogger()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Warnw("Failed to marshal event payload", "type", eventType, "error", err)
		return
	}

	event := types.Event{
		BaseEvent: types.BaseEvent{
			ID:        utils.GenerateEventID(),
			Type:      eventType,
			RoomID:    roomID,
			Timestamp: vm.now(),
			Version:   1,
		},
		Metadata: types.EventMetadata{
			Source: "vote_model",
		},
		Payload: payloadJSON,
	}

	if err := vm.publisher.Publish(ctx, roomID, event); err != nil {
		log.Warnw("Failed to publish vote event", "type", eventType, "roomId", roomID, "error", err)
	}
}

// validateVoteCreate trims the request in place and resolves the duration unit.
func validateVoteCreate(req *types.VoteCreate) (types.DurationUnit, error) {
	var validationErrors []string

	req.RoomID = strings.TrimSpace(req.RoomID)
	req.Title = strings.TrimSpace(req.Title)
	req.CreatedBy = strings.TrimSpace(req.CreatedBy)
	req.Description = utils.TrimToPtr(req.Description)

	if req.RoomID == "" {
		validationErrors = append(validationErrors, "roomId is required")
	}
	if req.Title == "" {
		validationErrors = append(validationErrors, "title is required")
	}
	if req.CreatedBy == "" {
		validationErrors = append(validationErrors, "createdBy is required")
	}
	if len(req.MediaIDs) == 0 {
		validationErrors = append(validationErrors, "at least one option is required")
	}
	for i, id := range req.MediaIDs {
		if id <= 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("mediaIds[%d] must be a positive id", i))
		}
	}
	if req.Duration != nil && !(*req.Duration > 0) {
		validationErrors = append(validationErrors, "duration must be positive")
	}

	unit, err := types.ParseDurationUnit(req.DurationUnit)
	if err != nil {
		validationErrors = append(validationErrors, err.Error())
	} else if req.Duration != nil && *req.Duration*float64(unit.Span(1)) >= math.MaxInt64 {
		validationErrors = append(validationErrors, "duration is too long")
	}

	if len(validationErrors) > 0 {
		return "", errors.ValidationFailed("Invalid vote data", strings.Join(validationErrors, "; "))
	}
	return unit, nil
}
