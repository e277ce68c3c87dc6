package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/watchroom/watchroom-backend/errors"
	"github.com/watchroom/watchroom-backend/middleware"
	"github.com/watchroom/watchroom-backend/models"
	"github.com/watchroom/watchroom-backend/types"
)

// VoteServiceInterface defines the methods used by VoteHandler,
// allowing the handler to be tested with a mock.
type VoteServiceInterface interface {
	CreateVote(ctx context.Context, req *types.VoteCreate) (*types.VoteCreated, error)
	ListRoomVotes(ctx context.Context, roomID string, deviceID *string) ([]*types.VoteResponse, error)
	GetVote(ctx context.Context, voteID int64, deviceID *string) (*types.VoteResponse, error)
	SubmitBallot(ctx context.Context, voteID int64, req *types.BallotCreate) (*types.BallotCreated, error)
	UpdateVoteStatus(ctx context.Context, voteID int64, status types.VoteStatus) error
	DeleteVote(ctx context.Context, voteID int64) error
}

// compile-time check: *models.VoteModel satisfies VoteServiceInterface
var _ VoteServiceInterface = (*models.VoteModel)(nil)

type VoteHandler struct {
	voteService VoteServiceInterface
}

func NewVoteHandler(service VoteServiceInterface) *VoteHandler {
	return &VoteHandler{
		voteService: service,
	}
}

// CreateVoteHandler opens a vote in a room.
func (h *VoteHandler) CreateVoteHandler(c *gin.Context) {
	var req types.VoteCreate
	if !bindJSONOrError(c, &req) {
		return
	}

	resp, err := h.voteService.CreateVote(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListVotesHandler lists a room's votes, newest first. The room comes from
// the path on /rooms/:roomId/votes and from the roomId query otherwise.
func (h *VoteHandler) ListVotesHandler(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	if roomID == "" {
		roomID = strings.TrimSpace(c.Query("roomId"))
	}
	if roomID == "" {
		_ = c.Error(errors.ValidationFailed("Invalid request", "roomId is required"))
		return
	}

	votes, err := h.voteService.ListRoomVotes(c.Request.Context(), roomID, deviceIDFromRequest(c, nil))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, votes)
}

// GetVoteHandler returns one vote with its tallies.
func (h *VoteHandler) GetVoteHandler(c *gin.Context) {
	voteID, ok := voteIDParam(c)
	if !ok {
		return
	}

	resp, err := h.voteService.GetVote(c.Request.Context(), voteID, deviceIDFromRequest(c, nil))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SubmitBallotHandler casts one ballot. A device id in the body wins over the header.
func (h *VoteHandler) SubmitBallotHandler(c *gin.Context) {
	voteID, ok := voteIDParam(c)
	if !ok {
		return
	}

	var req types.BallotCreate
	if !bindJSONOrError(c, &req) {
		return
	}
	req.DeviceID = deviceIDFromRequest(c, req.DeviceID)

	resp, err := h.voteService.SubmitBallot(c.Request.Context(), voteID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// UpdateVoteStatusHandler overwrites a vote's status.
func (h *VoteHandler) UpdateVoteStatusHandler(c *gin.Context) {
	voteID, ok := voteIDParam(c)
	if !ok {
		return
	}

	var req types.VoteStatusUpdate
	if !bindJSONOrError(c, &req) {
		return
	}

	if err := h.voteService.UpdateVoteStatus(c.Request.Context(), voteID, req.Status); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vote status updated successfully"})
}

// DeleteVoteHandler removes a vote with its options and ballots.
func (h *VoteHandler) DeleteVoteHandler(c *gin.Context) {
	voteID, ok := voteIDParam(c)
	if !ok {
		return
	}

	if err := h.voteService.DeleteVote(c.Request.Context(), voteID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vote deleted successfully"})
}

func voteIDParam(c *gin.Context) (int64, bool) {
	raw := c.Param("voteId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(errors.ValidationFailed("Invalid vote id", "voteId must be a positive integer"))
		return 0, false
	}
	return id, true
}

// deviceIDFromRequest picks the first non-blank of the given value, the
// deviceId query parameter and the device header.
func deviceIDFromRequest(c *gin.Context, fromBody *string) *string {
	candidates := []string{c.Query("deviceId"), c.GetHeader(middleware.DeviceIDHeader)}
	if fromBody != nil {
		candidates = append([]string{*fromBody}, candidates...)
	}
	for _, v := range candidates {
		if v = strings.TrimSpace(v); v != "" {
			return &v
		}
	}
	return nil
}

func bindJSONOrError(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid request payload", err.Error()))
		return false
	}
	return true
}
