package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/watchroom/watchroom-backend/internal/store"
	"github.com/watchroom/watchroom-backend/types"
)

// Index names from db/migrations. The database is the serialization point for both.
const (
	activeVotePerRoomIndex = "votes_one_active_per_room"
	ballotPerDeviceIndex   = "vote_results_vote_device_key"
)

const voteColumns = `v.id, v.room_id, v.title, v.description, v.duration, v.duration_unit,
		v.status, v.created_by, v.created_at, v.ends_at`

// Ensure VoteStore implements store.VoteStore
var _ store.VoteStore = (*VoteStore)(nil)

// VoteStore implements store.VoteStore on PostgreSQL.
type VoteStore struct {
	db DB
}

// NewVoteStore creates a new VoteStore. db is normally a *pgxpool.Pool.
func NewVoteStore(db DB) *VoteStore {
	return &VoteStore{db: db}
}

// ExpireLapsedVotes marks lapsed active votes expired and returns how many rows changed.
func (s *VoteStore) ExpireLapsedVotes(ctx context.Context, roomID string, now time.Time) (int64, error) {
	n, err := expireLapsed(ctx, s.db, roomID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire lapsed votes: %w", err)
	}
	return n, nil
}

func expireLapsed(ctx context.Context, q querier, roomID string, now time.Time) (int64, error) {
	const base = `
		UPDATE votes SET status = 'expired'
		WHERE status = 'active' AND ends_at IS NOT NULL AND ends_at <= $1`

	var (
		tag pgconn.CommandTag
		err error
	)
	if roomID == "" {
		tag, err = q.Exec(ctx, base, now)
	} else {
		tag, err = q.Exec(ctx, base+` AND room_id = $2`, now, roomID)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateVoteWithOptions inserts the vote and its options in one transaction.
// The room is swept first inside the same transaction so a vote that lapsed
// after the caller's check cannot block the insert. A concurrent creator that
// won the race surfaces as store.ErrActiveVoteExists.
func (s *VoteStore) CreateVoteWithOptions(ctx context.Context, vote *types.Vote, itemIDs []int64, now time.Time) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, errors.New("failed to create vote: no options")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := expireLapsed(ctx, tx, vote.RoomID, now); err != nil {
		return 0, fmt.Errorf("failed to expire lapsed votes: %w", err)
	}

	var voteID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO votes (room_id, title, description, duration, duration_unit, status, created_by, created_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		vote.RoomID, vote.Title, vote.Description, vote.Duration, durationUnitArg(vote.DurationUnit),
		string(types.VoteStatusActive), vote.CreatedBy, vote.CreatedAt, vote.EndsAt,
	).Scan(&voteID)
	if err != nil {
		if isUniqueViolation(err, activeVotePerRoomIndex) {
			return 0, fmt.Errorf("failed to create vote: %w", store.ErrActiveVoteExists)
		}
		return 0, fmt.Errorf("failed to create vote: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO vote_options (vote_id, item_id, created_at)
		SELECT $1, item_id, $3
		FROM unnest($2::bigint[]) WITH ORDINALITY AS t(item_id, position)
		ORDER BY position`,
		voteID, itemIDs, vote.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create vote options: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return voteID, nil
}

// GetVote retrieves a vote by ID. Returns store.ErrNotFound if absent.
func (s *VoteStore) GetVote(ctx context.Context, id int64) (*types.Vote, error) {
	row := s.db.QueryRow(ctx, `SELECT `+voteColumns+` FROM votes v WHERE v.id = $1`, id)
	vote, err := scanVote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return vote, nil
}

// GetActiveVote returns the vote stored as active in the room, or store.ErrNotFound.
func (s *VoteStore) GetActiveVote(ctx context.Context, roomID string) (*types.Vote, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+voteColumns+` FROM votes v
		WHERE v.room_id = $1 AND v.status = 'active'
		ORDER BY v.created_at DESC
		LIMIT 1`,
		roomID,
	)
	vote, err := scanVote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active vote: %w", err)
	}
	return vote, nil
}

// ListVotesByRoom returns the room's votes, newest first.
func (s *VoteStore) ListVotesByRoom(ctx context.Context, roomID string) ([]*types.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+voteColumns+` FROM votes v
		WHERE v.room_id = $1
		ORDER BY v.created_at DESC, v.id DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	votes := make([]*types.Vote, 0)
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

// ListOptionTallies returns the options of every listed vote in creation
// order with their ballot counts, in one query.
func (s *VoteStore) ListOptionTallies(ctx context.Context, voteIDs []int64) (map[int64][]*store.OptionTally, error) {
	byVote := make(map[int64][]*store.OptionTally, len(voteIDs))
	if len(voteIDs) == 0 {
		return byVote, nil
	}
	for _, id := range voteIDs {
		byVote[id] = make([]*store.OptionTally, 0)
	}

	rows, err := s.db.Query(ctx,
		`SELECT o.id, o.vote_id, o.item_id, o.created_at, COUNT(r.id)
		FROM vote_options o
		LEFT JOIN vote_results r ON r.option_id = o.id
		WHERE o.vote_id = ANY($1)
		GROUP BY o.id
		ORDER BY o.vote_id, o.id`,
		voteIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vote options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t     store.OptionTally
			count int64
		)
		if err := rows.Scan(&t.Option.ID, &t.Option.VoteID, &t.Option.ItemID, &t.Option.CreatedAt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote option: %w", err)
		}
		t.Count = int(count)
		byVote[t.Option.VoteID] = append(byVote[t.Option.VoteID], &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vote options: %w", err)
	}
	return byVote, nil
}

// ListDeviceVotes reports which of the listed votes deviceID has a ballot on.
func (s *VoteStore) ListDeviceVotes(ctx context.Context, voteIDs []int64, deviceID string) (map[int64]bool, error) {
	voted := make(map[int64]bool, len(voteIDs))
	if len(voteIDs) == 0 {
		return voted, nil
	}
	for _, id := range voteIDs {
		voted[id] = false
	}

	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT vote_id FROM vote_results
		WHERE vote_id = ANY($1) AND device_id = $2`,
		voteIDs, deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check device ballots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan device ballot: %w", err)
		}
		voted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device ballots: %w", err)
	}
	return voted, nil
}

// GetBallotContext loads the vote, the option if it belongs to the vote, and
// the device's prior ballot if any. Returns store.ErrNotFound if the vote is absent.
func (s *VoteStore) GetBallotContext(ctx context.Context, voteID, optionID int64, deviceID *string) (*store.BallotContext, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+voteColumns+`, o.id, o.item_id, o.created_at, r.id
		FROM votes v
		LEFT JOIN vote_options o ON o.vote_id = v.id AND o.id = $2
		LEFT JOIN vote_results r ON r.vote_id = v.id AND r.device_id = $3
		WHERE v.id = $1`,
		voteID, optionID, deviceID,
	)

	var (
		vr            voteRow
		optID, itemID *int64
		optCreatedAt  *time.Time
		priorResultID *int64
	)
	dest := append(vr.dest(), &optID, &itemID, &optCreatedAt, &priorResultID)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load ballot context: %w", err)
	}

	bc := &store.BallotContext{
		Vote:          vr.vote(),
		PriorResultID: priorResultID,
	}
	if optID != nil {
		bc.Option = &types.VoteOption{ID: *optID, VoteID: voteID}
		if itemID != nil {
			bc.Option.ItemID = *itemID
		}
		if optCreatedAt != nil {
			bc.Option.CreatedAt = *optCreatedAt
		}
	}
	return bc, nil
}

// CreateVoteResult records a ballot. A second ballot from the same device on the
// same vote returns store.ErrAlreadyVoted; an option outside the vote or a vote
// deleted mid-flight returns store.ErrNotFound.
func (s *VoteStore) CreateVoteResult(ctx context.Context, result *types.VoteResult) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO vote_results (vote_id, option_id, voter_name, device_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		result.VoteID, result.OptionID, result.VoterName, result.DeviceID, result.CreatedAt,
	).Scan(&id)
	if err != nil {
		switch {
		case isUniqueViolation(err, ballotPerDeviceIndex):
			return 0, fmt.Errorf("failed to create vote result: %w", store.ErrAlreadyVoted)
		case isForeignKeyViolation(err):
			return 0, fmt.Errorf("failed to create vote result: %w", store.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to create vote result: %w", err)
	}
	return id, nil
}

// ExpireVote flips a single vote to expired if it is still stored as active.
func (s *VoteStore) ExpireVote(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE votes SET status = 'expired' WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to expire vote: %w", err)
	}
	return nil
}

// UpdateVoteStatus overwrites the stored status. Returns store.ErrNotFound if
// the vote is absent and store.ErrActiveVoteExists if the room already has
// another active vote.
func (s *VoteStore) UpdateVoteStatus(ctx context.Context, id int64, status types.VoteStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE votes SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		if isUniqueViolation(err, activeVotePerRoomIndex) {
			return fmt.Errorf("failed to update vote status: %w", store.ErrActiveVoteExists)
		}
		return fmt.Errorf("failed to update vote status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteVote removes the vote. Options and results go with it by cascade.
func (s *VoteStore) DeleteVote(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// voteRow holds scan targets for voteColumns. Enum columns are scanned as
// plain strings and converted afterwards.
type voteRow struct {
	v            types.Vote
	status       string
	durationUnit *string
}

func (r *voteRow) dest() []any {
	return []any{
		&r.v.ID,
		&r.v.RoomID,
		&r.v.Title,
		&r.v.Description,
		&r.v.Duration,
		&r.durationUnit,
		&r.status,
		&r.v.CreatedBy,
		&r.v.CreatedAt,
		&r.v.EndsAt,
	}
}

func (r *voteRow) vote() *types.Vote {
	v := r.v
	v.Status = types.VoteStatus(r.status)
	if r.durationUnit != nil {
		u := types.DurationUnit(*r.durationUnit)
		v.DurationUnit = &u
	}
	return &v
}

func scanVote(row pgx.Row) (*types.Vote, error) {
	var vr voteRow
	if err := row.Scan(vr.dest()...); err != nil {
		return nil, err
	}
	return vr.vote(), nil
}

func durationUnitArg(u *types.DurationUnit) *string {
	if u == nil {
		return nil
	}
	s := string(*u)
	return &s
}
