package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/models"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return NewResolver(loc, 2000, arbor.NewLogger())
}

func TestParseDateTimeString_ExifFormat(t *testing.T) {
	got, ok := parseDateTimeString("2024:01:15 12:00:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), got)
}

func TestParseDateTimeString_ExplicitOffsetWins(t *testing.T) {
	// -05:00 in the value overrides the passed location.
	got, ok := parseDateTimeString("2024:01:15 12:00:00-05:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC), got)
}

func TestParseDateTimeString_NaiveUsesLocation(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	got, ok := parseDateTimeString("2024:01:15 12:00:00", ny)
	require.True(t, ok)
	// EST is UTC-5 in January.
	assert.Equal(t, time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC), got)
}

func TestParseDateTimeString_Invalid(t *testing.T) {
	cases := []string{
		"",
		"not a date",
		"1999:01:15 12:00:00", // below year floor
		"2101:01:15 12:00:00", // above year ceiling
		"2024:02:30 12:00:00", // impossible day
		"2024:13:01 12:00:00", // impossible month
	}
	for _, input := range cases {
		_, ok := parseDateTimeString(input, time.UTC)
		assert.False(t, ok, "expected %q to be rejected", input)
	}
}

func TestFromFilename_DateAndTime(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())

	got, source, ok := r.FromFilename("IMG_20240115_143015.jpg")
	require.True(t, ok)
	assert.Equal(t, models.SourceFilenameDatetime, source)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 15, 0, time.UTC), got)
}

func TestFromFilename_DateOnlyDefaultsToEndOfDay(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())

	got, source, ok := r.FromFilename("holiday-2024-01-15.jpg")
	require.True(t, ok)
	assert.Equal(t, models.SourceFilenameDate, source)
	assert.Equal(t, time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC), got)
}

func TestFromFilename_NoDate(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())
	_, _, ok := r.FromFilename("DSC01234.jpg")
	assert.False(t, ok)
}

func TestCandidates_QuickTimeIsUTC(t *testing.T) {
	r := newTestResolver(t)

	tags := map[string]string{
		models.SourceQuickTimeCreateDate: "2024:06:01 12:00:00",
	}
	candidates := r.Candidates(tags, "clip.mp4")
	require.Len(t, candidates, 1)
	// Naive QuickTime is UTC, not the configured zone.
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), candidates[0].Time)
	assert.Equal(t, 7, candidates[0].Weight)
}

func TestCandidates_ExifUsesConfiguredZone(t *testing.T) {
	r := newTestResolver(t)

	tags := map[string]string{
		models.SourceExifDateTimeOriginal: "2024:06:01 12:00:00",
	}
	candidates := r.Candidates(tags, "photo.jpg")
	require.Len(t, candidates, 1)
	// EDT is UTC-4 in June.
	assert.Equal(t, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC), candidates[0].Time)
}

func TestResolve_EarliestValidWins(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())

	earlier := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	later := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	result := r.Resolve([]models.TimestampCandidate{
		{Source: models.SourceExifDateTimeOriginal, Weight: 10, Time: later},
		{Source: models.SourceFileModifyDate, Weight: 2, Time: earlier},
	})

	require.NotNil(t, result.Time)
	assert.True(t, result.Time.Equal(earlier))
	assert.Equal(t, models.SourceFileModifyDate, result.Source)
}

func TestResolve_ConfidenceTiers(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("high needs weight and agreement", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceExifDateTimeOriginal, Weight: 10, Time: at},
			{Source: models.SourceExifCreateDate, Weight: 8, Time: at.Add(time.Second)},
		})
		assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	})

	t.Run("strong source alone is medium", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceExifDateTimeOriginal, Weight: 10, Time: at},
		})
		assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	})

	t.Run("weak sources agreeing is medium", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceFilenameDatetime, Weight: 3, Time: at},
			{Source: models.SourceFileModifyDate, Weight: 2, Time: at},
		})
		assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	})

	t.Run("single weak source is low", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceFileModifyDate, Weight: 2, Time: at},
		})
		assert.Equal(t, models.ConfidenceLow, result.Confidence)
	})

	t.Run("agreement outside one second does not count", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceExifDateTimeOriginal, Weight: 10, Time: at},
			{Source: models.SourceExifCreateDate, Weight: 8, Time: at.Add(2 * time.Second)},
		})
		assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	})
}

func TestResolve_NoValidCandidates(t *testing.T) {
	r := NewResolver(time.UTC, 2000, arbor.NewLogger())

	t.Run("empty", func(t *testing.T) {
		result := r.Resolve(nil)
		assert.Nil(t, result.Time)
		assert.Equal(t, models.ConfidenceNone, result.Confidence)
	})

	t.Run("all outside year range", func(t *testing.T) {
		result := r.Resolve([]models.TimestampCandidate{
			{Source: models.SourceFileModifyDate, Weight: 2, Time: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
		assert.Nil(t, result.Time)
		assert.Equal(t, models.ConfidenceNone, result.Confidence)
		// The rejected candidate stays in the set for review.
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, models.SourceFileModifyDate, result.Candidates[0].Source)
	})
}
