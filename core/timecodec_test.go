package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requirement: ParseTime is the left inverse of FormatTime.
func TestTimeCodec_RoundTrip(t *testing.T) {
	values := []time.Time{
		time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC),
		time.Date(1999, 12, 31, 0, 0, 0, 0, time.FixedZone("CET", 3600)),
		time.Unix(0, 0),
	}

	for _, v := range values {
		got, err := ParseTime(FormatTime(v))
		require.NoError(t, err)
		assert.True(t, v.Equal(got), "round trip of %v gave %v", v, got)
	}
}

func TestTimeCodec_RejectsGarbage(t *testing.T) {
	_, err := ParseTime("yesterday")
	assert.ErrorIs(t, err, ErrMalformed)

	bad := "2024-13-01T00:00:00Z"
	_, err = ParseTimePtr(&bad)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTimeCodec_Pointers(t *testing.T) {
	assert.Nil(t, FormatTimePtr(nil))
	got, err := ParseTimePtr(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now()
	back, err := ParseTimePtr(FormatTimePtr(&now))
	require.NoError(t, err)
	assert.True(t, now.Equal(*back))
}
