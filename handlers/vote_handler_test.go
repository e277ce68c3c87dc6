package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/watchroom/watchroom-backend/errors"
	"github.com/watchroom/watchroom-backend/logger"
	"github.com/watchroom/watchroom-backend/middleware"
	"github.com/watchroom/watchroom-backend/types"
)

func init() {
	logger.IsTest = true
}

// ---------------------------------------------------------------------------
// Mock
// ---------------------------------------------------------------------------

type MockVoteService struct {
	mock.Mock
}

func (m *MockVoteService) CreateVote(ctx context.Context, req *types.VoteCreate) (*types.VoteCreated, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VoteCreated), args.Error(1)
}

func (m *MockVoteService) ListRoomVotes(ctx context.Context, roomID string, deviceID *string) ([]*types.VoteResponse, error) {
	args := m.Called(ctx, roomID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.VoteResponse), args.Error(1)
}

func (m *MockVoteService) GetVote(ctx context.Context, voteID int64, deviceID *string) (*types.VoteResponse, error) {
	args := m.Called(ctx, voteID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VoteResponse), args.Error(1)
}

func (m *MockVoteService) SubmitBallot(ctx context.Context, voteID int64, req *types.BallotCreate) (*types.BallotCreated, error) {
	args := m.Called(ctx, voteID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BallotCreated), args.Error(1)
}

func (m *MockVoteService) UpdateVoteStatus(ctx context.Context, voteID int64, status types.VoteStatus) error {
	return m.Called(ctx, voteID, status).Error(0)
}

func (m *MockVoteService) DeleteVote(ctx context.Context, voteID int64) error {
	return m.Called(ctx, voteID).Error(0)
}

var _ VoteServiceInterface = (*MockVoteService)(nil)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func setupVoteRouter() (*gin.Engine, *MockVoteService) {
	gin.SetMode(gin.TestMode)
	svc := new(MockVoteService)
	h := NewVoteHandler(svc)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	v1 := r.Group("/v1")
	v1.POST("/votes", h.CreateVoteHandler)
	v1.GET("/votes", h.ListVotesHandler)
	v1.GET("/rooms/:roomId/votes", h.ListVotesHandler)
	v1.GET("/votes/:voteId", h.GetVoteHandler)
	v1.POST("/votes/:voteId/ballots", h.SubmitBallotHandler)
	v1.PATCH("/votes/:voteId/status", h.UpdateVoteStatusHandler)
	v1.DELETE("/votes/:voteId", h.DeleteVoteHandler)
	return r, svc
}

func doRequest(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func devicePtr(want string) interface{} {
	return mock.MatchedBy(func(d *string) bool { return d != nil && *d == want })
}

func noDevice() interface{} {
	return mock.MatchedBy(func(d *string) bool { return d == nil })
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCreateVoteHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("CreateVote", mock.Anything, mock.MatchedBy(func(req *types.VoteCreate) bool {
			return req.RoomID == "R1" && req.Title == "Movie night" && len(req.MediaIDs) == 2
		})).Return(&types.VoteCreated{VoteID: 7}, nil)

		w := doRequest(r, http.MethodPost, "/v1/votes", map[string]interface{}{
			"roomId": "R1", "title": "Movie night", "mediaIds": []int64{1, 2}, "createdBy": "ana",
		}, nil)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"voteId":7}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("conflict carries the running vote", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("CreateVote", mock.Anything, mock.Anything).
			Return(nil, apperrors.ActiveVoteConflict(3, "Friday", "bo"))

		w := doRequest(r, http.MethodPost, "/v1/votes", map[string]interface{}{
			"roomId": "R1", "title": "Another", "mediaIds": []int64{1}, "createdBy": "ana",
		}, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, float64(3), body["existingVoteId"])
		assert.Equal(t, "Friday", body["existingVoteTitle"])
		assert.Equal(t, "bo", body["existingVoteCreatedBy"])
		assert.Equal(t, apperrors.CodeActiveVote, body["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		r, svc := setupVoteRouter()
		req := httptest.NewRequest(http.MethodPost, "/v1/votes", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "CreateVote", mock.Anything, mock.Anything)
	})
}

func TestListVotesHandler(t *testing.T) {
	t.Run("missing roomId", func(t *testing.T) {
		r, svc := setupVoteRouter()
		w := doRequest(r, http.MethodGet, "/v1/votes", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Invalid request", body["message"])
		assert.Equal(t, "roomId is required", body["details"])
		svc.AssertNotCalled(t, "ListRoomVotes", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("query form with device", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("ListRoomVotes", mock.Anything, "R1", devicePtr("dev-1")).
			Return([]*types.VoteResponse{{Vote: types.Vote{ID: 2, RoomID: "R1"}}}, nil)

		w := doRequest(r, http.MethodGet, "/v1/votes?roomId=R1&deviceId=dev-1", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var votes []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &votes))
		require.Len(t, votes, 1)
		assert.Equal(t, float64(2), votes[0]["id"])
		svc.AssertExpectations(t)
	})

	t.Run("room path alias with header device", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("ListRoomVotes", mock.Anything, "R9", devicePtr("dev-h")).
			Return([]*types.VoteResponse{}, nil)

		w := doRequest(r, http.MethodGet, "/v1/rooms/R9/votes", nil, map[string]string{middleware.DeviceIDHeader: "dev-h"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
		svc.AssertExpectations(t)
	})
}

func TestGetVoteHandler(t *testing.T) {
	t.Run("found without device", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("GetVote", mock.Anything, int64(5), noDevice()).
			Return(&types.VoteResponse{Vote: types.Vote{ID: 5, Status: types.VoteStatusExpired}, TotalVotes: 3}, nil)

		w := doRequest(r, http.MethodGet, "/v1/votes/5", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "expired", body["status"])
		assert.Equal(t, float64(3), body["totalVotes"])
		assert.NotContains(t, body, "userHasVoted")
	})

	t.Run("not found", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("GetVote", mock.Anything, int64(404), mock.Anything).Return(nil, apperrors.NotFound("Vote", 404))

		w := doRequest(r, http.MethodGet, "/v1/votes/404", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	for _, bad := range []string{"abc", "0", "-1", "1.5"} {
		t.Run("malformed id "+bad, func(t *testing.T) {
			r, svc := setupVoteRouter()
			w := doRequest(r, http.MethodGet, "/v1/votes/"+bad, nil, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid vote id", decodeBody(t, w)["message"])
			svc.AssertNotCalled(t, "GetVote", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitBallotHandler(t *testing.T) {
	t.Run("body device wins over header", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("SubmitBallot", mock.Anything, int64(5), mock.MatchedBy(func(req *types.BallotCreate) bool {
			return req.OptionID != nil && *req.OptionID == 51 && req.DeviceID != nil && *req.DeviceID == "dev-body"
		})).Return(&types.BallotCreated{ResultID: 900}, nil)

		w := doRequest(r, http.MethodPost, "/v1/votes/5/ballots",
			map[string]interface{}{"optionId": 51, "deviceId": "dev-body"},
			map[string]string{middleware.DeviceIDHeader: "dev-header"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"resultId":900}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("header device fills in", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("SubmitBallot", mock.Anything, int64(5), mock.MatchedBy(func(req *types.BallotCreate) bool {
			return req.DeviceID != nil && *req.DeviceID == "dev-header"
		})).Return(&types.BallotCreated{ResultID: 901}, nil)

		w := doRequest(r, http.MethodPost, "/v1/votes/5/ballots",
			map[string]interface{}{"optionId": 51},
			map[string]string{middleware.DeviceIDHeader: "dev-header"})
		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	stateErrors := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"already voted", apperrors.VoteStateError(apperrors.CodeAlreadyVoted, "already voted"), http.StatusBadRequest, "already_voted"},
		{"expired", apperrors.VoteStateError(apperrors.CodeVoteExpired, "expired"), http.StatusBadRequest, "vote_expired"},
		{"not active", apperrors.VoteStateError(apperrors.CodeVoteNotActive, "closed"), http.StatusBadRequest, "vote_not_active"},
		{"option missing", apperrors.NotFound("Vote option", 99), http.StatusNotFound, "404"},
	}
	for _, tc := range stateErrors {
		t.Run(tc.name, func(t *testing.T) {
			r, svc := setupVoteRouter()
			svc.On("SubmitBallot", mock.Anything, int64(5), mock.Anything).Return(nil, tc.err)

			w := doRequest(r, http.MethodPost, "/v1/votes/5/ballots", map[string]interface{}{"optionId": 99}, nil)
			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, tc.code, decodeBody(t, w)["code"])
		})
	}
}

func TestUpdateVoteStatusHandler(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("UpdateVoteStatus", mock.Anything, int64(5), types.VoteStatusCompleted).Return(nil)

		w := doRequest(r, http.MethodPatch, "/v1/votes/5/status", map[string]string{"status": "completed"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid status", func(t *testing.T) {
		r, svc := setupVoteRouter()
		svc.On("UpdateVoteStatus", mock.Anything, int64(5), types.VoteStatus("paused")).
			Return(apperrors.ValidationFailed("invalid status", "status must be active, completed or expired"))

		w := doRequest(r, http.MethodPatch, "/v1/votes/5/status", map[string]string{"status": "paused"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteVoteHandler(t *testing.T) {
	r, svc := setupVoteRouter()
	svc.On("DeleteVote", mock.Anything, int64(5)).Return(nil)
	svc.On("DeleteVote", mock.Anything, int64(6)).Return(apperrors.NotFound("Vote", 6))

	w := doRequest(r, http.MethodDelete, "/v1/votes/5", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodDelete, "/v1/votes/6", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
