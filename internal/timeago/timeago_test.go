package timeago

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offset   time.Duration
		expected string
	}{
		{"Just now", 0, "now"},
		{"Seconds", 30 * time.Second, "30 seconds ago"},
		{"One minute", time.Minute, "1 minute ago"},
		{"Minutes", 2 * time.Minute, "2 minutes ago"},
		{"Hours", 3 * time.Hour, "3 hours ago"},
		{"Yesterday", 24 * time.Hour, "yesterday"},
		{"Days", 2 * 24 * time.Hour, "2 days ago"},
		{"Last week", 10 * 24 * time.Hour, "last week"},
		{"Last month", 40 * 24 * time.Hour, "last month"},
		{"Future hour", -time.Hour, "in 1 hour"},
		{"Tomorrow", -24 * time.Hour, "tomorrow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(now.Add(-tt.offset), now))
		})
	}
}

func TestFormat_InvalidInput(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "", Format(nil, now))
	assert.Equal(t, "", Format("", now))
	assert.Equal(t, "", Format("not-a-date", now))
	assert.Equal(t, "", Format(time.Time{}, now))
	assert.Equal(t, "", Format(struct{}{}, now))
}

func TestFormat_NumericInputs(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	fiveMinutesAgoMs := now.Add(-5 * time.Minute).UnixMilli()
	assert.Equal(t, "5 minutes ago", Format(fiveMinutesAgoMs, now))

	tenMinutesAgoSec := now.Add(-10 * time.Minute).Unix()
	assert.Equal(t, "10 minutes ago", Format(tenMinutesAgoSec, now))

	twoMinutesAgoStr := strconv.FormatInt(now.Add(-2*time.Minute).UnixMilli(), 10)
	assert.Equal(t, "2 minutes ago", Format(twoMinutesAgoStr, now))

	iso := now.Add(-30 * time.Minute).Format(time.RFC3339)
	assert.Equal(t, "30 minutes ago", Format(iso, now))
}

func TestParse(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	got, ok := Parse(ts.Format(time.RFC3339Nano))
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))

	got, ok = Parse(&ts)
	assert.True(t, ok)
	assert.True(t, ts.Equal(got))

	_, ok = Parse("invalid")
	assert.False(t, ok)

	var nilTime *time.Time
	_, ok = Parse(nilTime)
	assert.False(t, ok)
}
