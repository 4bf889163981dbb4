package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	closed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-05-01T12:00:00Z", closed, true},
		{"rfc3339 fractional", "2024-05-01T12:00:00.250Z", closed.Add(250 * time.Millisecond), true},
		{"unix seconds", strconv.FormatInt(closed.Unix(), 10), closed, true},
		{"exchange millis", strconv.FormatInt(closed.UnixMilli(), 10), closed, true},
		{"empty", "", time.Time{}, false},
		{"negative", "-5", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTimeDefaultFallsBack(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", now).Equal(now))
	assert.True(t, ParseTimeDefault("1714564800", now).Equal(now))
}
