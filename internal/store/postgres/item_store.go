package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/watchroom/watchroom-backend/internal/store"
	"github.com/watchroom/watchroom-backend/types"
)

// Ensure ItemStore implements store.ItemStore
var _ store.ItemStore = (*ItemStore)(nil)

// ItemStore reads the room items that vote options point at. The items table
// belongs to the room service; this store never writes to it.
type ItemStore struct {
	db DB
}

func NewItemStore(db DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItemsByIDs returns the items found, keyed by ID. Unknown IDs are simply absent.
func (s *ItemStore) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]*types.MediaItem, error) {
	items := make(map[int64]*types.MediaItem, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, title, type, year, genre, poster_url, external_id
		FROM items
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item       types.MediaItem
			year       pgtype.Int4
			genre      pgtype.Text
			posterURL  pgtype.Text
			externalID pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.Type, &year, &genre, &posterURL, &externalID); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Year = pgInt4ToIntPtr(year)
		item.Genre = pgTextToStringPtr(genre)
		item.PosterURL = pgTextToStringPtr(posterURL)
		item.ExternalID = pgTextToStringPtr(externalID)
		items[item.ID] = &item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}
