package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemStore_GetItemsByIDs(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "title", "type", "year", "genre", "poster_url", "external_id"}

	t.Run("decorates found items", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(q("WHERE id = ANY($1)")).
			WithArgs([]int64{5, 9, 11}).
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(int64(5), "Alien", "movie", pgtype.Int4{Int32: 1979, Valid: true},
					pgtype.Text{String: "Horror", Valid: true}, pgtype.Text{}, pgtype.Text{String: "tmdb:348", Valid: true}).
				AddRow(int64(9), "Cowboy Bebop", "anime", pgtype.Int4{}, pgtype.Text{}, pgtype.Text{}, pgtype.Text{}))

		items, err := NewItemStore(mock).GetItemsByIDs(ctx, []int64{5, 9, 11})
		require.NoError(t, err)
		require.Len(t, items, 2)

		require.NotNil(t, items[5].Year)
		assert.Equal(t, 1979, *items[5].Year)
		assert.Equal(t, "Horror", *items[5].Genre)
		assert.Nil(t, items[5].PosterURL)
		assert.Equal(t, "tmdb:348", *items[5].ExternalID)

		assert.Nil(t, items[9].Year)
		assert.NotContains(t, items, int64(11))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no ids skips the query", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		items, err := NewItemStore(mock).GetItemsByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(q("FROM items")).
			WithArgs([]int64{5}).
			WillReturnError(errors.New("relation \"items\" does not exist"))

		_, err = NewItemStore(mock).GetItemsByIDs(ctx, []int64{5})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get items")
	})
}
