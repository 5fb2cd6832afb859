package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "123"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "123", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	a, b, c := 1, 2, 3
	rows := []*int{&a, &b, &c}

	page, info := BuildCursorPageInfo(rows, 2, func(v *int) string {
		if *v == 2 {
			return "two"
		}
		return "other"
	})
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "two", info.NextPageToken)

	page, info = BuildCursorPageInfo(rows, 5, func(*int) string { return "x" })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}
