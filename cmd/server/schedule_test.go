package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRun(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skip("tzdata not available")
	}

	testCases := []struct {
		name string
		now  time.Time
		hour int
		loc  *time.Location
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2026, 10, 17, 6, 30, 0, 0, time.UTC),
			hour: 9,
			loc:  time.UTC,
			want: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at hour rolls to tomorrow",
			now:  time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
			hour: 9,
			loc:  time.UTC,
			want: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC),
			hour: 0,
			loc:  time.UTC,
			want: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "other timezone",
			now:  time.Date(2026, 10, 17, 1, 0, 0, 0, time.UTC), // 10:00 KST
			hour: 9,
			loc:  seoul,
			want: time.Date(2026, 10, 18, 9, 0, 0, 0, seoul),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextRun(tc.now, tc.hour, tc.loc)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}
