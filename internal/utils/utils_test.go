package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEventID(t *testing.T) {
	a := GenerateEventID()
	b := GenerateEventID()
	assert.Len(t, a, 23)
	assert.NotEqual(t, a, b)
}

func TestTrimToPtr(t *testing.T) {
	assert.Nil(t, TrimToPtr(nil))

	blank := "   "
	assert.Nil(t, TrimToPtr(&blank))

	name := "  Alice "
	got := TrimToPtr(&name)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", *got)
}
