package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no bounds", func(t *testing.T) {
		w, err := ParseWindow("", "", "", now)
		require.NoError(t, err)
		assert.Nil(t, w.Start)
		assert.Nil(t, w.End)
	})

	t.Run("hours", func(t *testing.T) {
		w, err := ParseWindow("6", "", "", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-6*time.Hour), *w.Start)
		assert.Equal(t, now, *w.End)
	})

	t.Run("fractional hours", func(t *testing.T) {
		w, err := ParseWindow("0.5", "", "", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-30*time.Minute), *w.Start)
	})

	t.Run("hours win over start and end", func(t *testing.T) {
		w, err := ParseWindow("1", "2020-01-01T00:00:00Z", "", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-time.Hour), *w.Start)
	})

	t.Run("start and end converted to UTC", func(t *testing.T) {
		w, err := ParseWindow("", "2024-06-01T03:00:00-05:00", "2024-06-01T10:00:00Z", now)
		require.NoError(t, err)
		assert.True(t, w.Start.Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))
		assert.Equal(t, time.UTC, w.Start.Location())
		assert.True(t, w.End.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))
	})

	t.Run("open end", func(t *testing.T) {
		w, err := ParseWindow("", "2024-06-01T08:00:00Z", "", now)
		require.NoError(t, err)
		assert.NotNil(t, w.Start)
		assert.Nil(t, w.End)
	})

	for _, bad := range []struct{ name, hours, start, end string }{
		{"negative hours", "-1", "", ""},
		{"zero hours", "0", "", ""},
		{"text hours", "day", "", ""},
		{"NaN hours", "NaN", "", ""},
		{"infinite hours", "Inf", "", ""},
		{"huge hours", "1e300", "", ""},
		{"more than a year", "8785", "", ""},
		{"bad start", "", "yesterday", ""},
		{"bad end", "", "", "2024-06-01"},
		{"end before start", "", "2024-06-01T10:00:00Z", "2024-06-01T08:00:00Z"},
	} {
		t.Run(bad.name, func(t *testing.T) {
			_, err := ParseWindow(bad.hours, bad.start, bad.end, now)
			assert.Error(t, err)
		})
	}
}
