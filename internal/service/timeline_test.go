package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/reelforge/internal/domain"
)

func TestNextSlot(t *testing.T) {
	ch := &domain.Channel{ID: "main", LongFormUploadTime: "18:30", ShortUploadTime: "12:00"}
	tl := NewTimeline(time.UTC)

	cases := []struct {
		name string
		vt   domain.VideoType
		now  time.Time
		want time.Time
	}{
		{"exactly at slot rolls to next day", domain.VideoTypeLongForm,
			time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC), time.Date(2026, 10, 17, 18, 30, 0, 0, time.UTC)},
		{"one nanosecond before slot", domain.VideoTypeLongForm,
			time.Date(2026, 10, 16, 18, 29, 59, 999999999, time.UTC), time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC)},
		{"after slot", domain.VideoTypeLongForm,
			time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC), time.Date(2026, 10, 17, 18, 30, 0, 0, time.UTC)},
		{"short uses its own time", domain.VideoTypeShort,
			time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC), time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)},
		{"month rollover", domain.VideoTypeShort,
			time.Date(2026, 10, 31, 13, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tl.NextSlot(ch, tc.vt, tc.now)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
			assert.True(t, got.After(tc.now))
		})
	}
}

func TestNextSlot_UsesChannelTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	ch := &domain.Channel{ID: "jp", LongFormUploadTime: "18:00", ShortUploadTime: "12:00", Timezone: "Asia/Tokyo"}

	// 08:00 UTC is 17:00 in Tokyo
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	got, err := NewTimeline(time.UTC).NextSlot(ch, domain.VideoTypeLongForm, now)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 16, 18, 0, 0, 0, tokyo)))
}

func TestNextSlot_RejectsMalformedTime(t *testing.T) {
	tl := NewTimeline(time.UTC)
	for _, clock := range []string{"", "18", "24:00", "18:60", "six:30"} {
		ch := &domain.Channel{ID: "x", LongFormUploadTime: clock}
		_, err := tl.NextSlot(ch, domain.VideoTypeLongForm, time.Now())
		assert.ErrorIs(t, err, domain.ErrInvalidSchedule, "clock %q", clock)
	}
}
