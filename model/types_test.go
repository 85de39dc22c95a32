package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiveBroadcastState(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		expected  LiveBroadcastState
		expectErr bool
	}{
		{name: "missing value defaults to standard", raw: "", expected: LiveStateStandard},
		{name: "lowercase standard", raw: "standard", expected: LiveStateStandard},
		{name: "lowercase upcoming", raw: "upcoming", expected: LiveStateUpcoming},
		{name: "mixed case live", raw: "Live", expected: LiveStateLive},
		{name: "already upper", raw: "UPCOMING", expected: LiveStateUpcoming},
		{name: "unknown value is invalid data", raw: "completed", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := ParseLiveBroadcastState(tt.raw)
			if tt.expectErr {
				require.Error(t, err)
				var invalid *InvalidDataError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, state)
		})
	}
}

func TestVideoProcessable(t *testing.T) {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		video    Video
		expected bool
	}{
		{
			name:     "standard video is always processable",
			video:    Video{LiveState: LiveStateStandard},
			expected: true,
		},
		{
			name:     "upcoming with passed start",
			video:    Video{LiveState: LiveStateUpcoming, ScheduledStartAt: &past},
			expected: true,
		},
		{
			name:     "upcoming with future start",
			video:    Video{LiveState: LiveStateUpcoming, ScheduledStartAt: &future},
			expected: false,
		},
		{
			name:     "live without scheduled start",
			video:    Video{LiveState: LiveStateLive},
			expected: false,
		},
		{
			name:     "live with start at now",
			video:    Video{LiveState: LiveStateLive, ScheduledStartAt: &now},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.video.Processable(now))
		})
	}
}
