package postgres

import "github.com/jackc/pgx/v5/pgtype"

// pgTextToStringPtr converts pgtype.Text to *string (nil if NULL)
func pgTextToStringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// pgInt4ToIntPtr converts pgtype.Int4 to *int (nil if NULL)
func pgInt4ToIntPtr(i pgtype.Int4) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int32)
	return &v
}
