package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/clock"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2025-03-10T09:00:00Z", slot0900},
		{"2025-03-10T09:00:00.000Z", slot0900},
		{"2025-03-10T14:30:00+05:30", slot0900},
		{"2025-03-10T04:00:00-05:00", slot0900},
		{"2025-03-10T14:30:00", slot0900},
		{"2025-03-10T14:30", slot0900},
		{" 2025-03-10 14:30 ", slot0900},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s", got)
			assert.Equal(t, clock.IST, got.Location())
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, raw := range []string{"", "tomorrow", "2025-13-10T09:00:00Z", "10/03/2025 09:00"} {
		_, err := ParseTimestamp(raw)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, raw)
		assert.Equal(t, KindInvalidInput, KindOf(err))
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "2025-03-10T14:30:00+05:30", FormatTimestamp(slot0900))
}
