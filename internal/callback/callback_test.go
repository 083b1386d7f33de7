package callback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	data := Format(ActionConfirm, []int64{12, 13, 14}, 42)
	assert.Equal(t, "confirm:12,13,14:42", data)

	d, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, ActionConfirm, d.Action)
	assert.Equal(t, []int64{12, 13, 14}, d.SlotIDs)
	assert.Equal(t, int64(42), d.UserID)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, data := range []string{
		"",
		"confirm",
		"confirm:1",
		"confirm:1:2:3",
		"promote:1:2",
		"confirm:a,b:2",
		"confirm:0:2",
		"confirm::2",
		"confirm:1:abc",
	} {
		_, err := Parse(data)
		assert.ErrorIs(t, err, ErrMalformed, "data=%q", data)
	}
}
