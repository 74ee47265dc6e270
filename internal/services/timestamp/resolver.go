// Package timestamp resolves the authoritative capture time for a
// media file from metadata tags, filename patterns and filesystem
// times, grading the result with a confidence tier.
package timestamp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/metadata"
)

const (
	validYearMin = 2000
	validYearMax = 2100

	// Two timestamps within this tolerance count as agreeing.
	agreementTolerance = time.Second
)

var (
	dateRegex     = regexp.MustCompile(`(19|20)\d{2}[-_.]?(0[1-9]|1[0-2])[-_.]?([0-2][0-9]|3[0-1])`)
	timeRegex     = regexp.MustCompile(`([01][0-9]|2[0-3])[0-5][0-9][0-5][0-9]`)
	timezoneRegex = regexp.MustCompile(`[-+]([01][0-9]|2[0-3]):?[0-5][0-9]`)

	// Same date pattern with separators already stripped.
	bareDateRegex = regexp.MustCompile(`(19|20)\d{2}(0[1-9]|1[0-2])([0-2][0-9]|3[0-1])`)
)

// Resolver builds timestamp candidates and selects the final value
type Resolver struct {
	location *time.Location
	minYear  int
	logger   arbor.ILogger
}

// NewResolver creates a resolver. Naive metadata times are interpreted
// in the given location before conversion to UTC.
func NewResolver(location *time.Location, minYear int, logger arbor.ILogger) *Resolver {
	if location == nil {
		location = time.UTC
	}
	if minYear <= 0 {
		minYear = validYearMin
	}
	return &Resolver{
		location: location,
		minYear:  minYear,
		logger:   logger,
	}
}

// Candidates collects every possible capture time for a file from its
// probed metadata tags and its filename.
func (r *Resolver) Candidates(tags map[string]string, fileName string) []models.TimestampCandidate {
	var candidates []models.TimestampCandidate

	for _, tag := range metadata.DatetimeTags() {
		value, ok := tags[tag]
		if !ok || value == "" {
			continue
		}

		// QuickTime writes naive UTC; camera EXIF without an offset is
		// local time in the configured zone.
		loc := r.location
		if tag == models.SourceQuickTimeCreateDate {
			loc = time.UTC
		}

		if t, ok := parseDateTimeString(value, loc); ok {
			candidates = append(candidates, models.TimestampCandidate{
				Source: tag,
				Weight: models.SourceWeights[tag],
				Time:   t,
			})
		}
	}

	if t, source, ok := r.FromFilename(fileName); ok {
		candidates = append(candidates, models.TimestampCandidate{
			Source: source,
			Weight: models.SourceWeights[source],
			Time:   t,
		})
	}

	return candidates
}

// FromFilename extracts a timestamp from patterns like
// 20240115_120000.jpg or 2024-01-15.jpg. Date-only matches default the
// time to 23:59:00 so the file sorts to the end of its day.
func (r *Resolver) FromFilename(fileName string) (time.Time, string, bool) {
	dateMatch := dateRegex.FindStringIndex(fileName)
	if dateMatch == nil {
		return time.Time{}, "", false
	}

	foundDate := fileName[dateMatch[0]:dateMatch[1]]
	foundTime := "235900"
	source := models.SourceFilenameDate

	// Look for a time after the date portion.
	if timeMatch := timeRegex.FindString(fileName[dateMatch[1]:]); timeMatch != "" {
		foundTime = timeMatch
		source = models.SourceFilenameDatetime
	}

	t, ok := parseDateTimeString(foundDate+" "+foundTime, r.location)
	if !ok {
		return time.Time{}, "", false
	}
	return t, source, true
}

// Resolve selects the final timestamp from candidates and grades it.
//
// The earliest valid candidate wins: a copy or edit can only move a
// timestamp later, so the earliest one is closest to capture. Validity
// filters out epoch dates and corrupted metadata outside
// [minYear, 2100]. Confidence combines the winner's source weight with
// agreement from other sources within one second:
//
//	HIGH    weight >= 8 and at least one other source agrees
//	MEDIUM  weight >= 5, or multiple sources agree
//	LOW     anything else with a valid candidate
//	NONE    no valid candidates
func (r *Resolver) Resolve(candidates []models.TimestampCandidate) models.TimestampResult {
	if len(candidates) == 0 {
		return models.TimestampResult{Confidence: models.ConfidenceNone}
	}

	var valid []models.TimestampCandidate
	for _, c := range candidates {
		year := c.Time.UTC().Year()
		if year >= r.minYear && year <= validYearMax {
			valid = append(valid, c)
		}
	}

	if len(valid) == 0 {
		return models.TimestampResult{
			Confidence: models.ConfidenceNone,
			Candidates: candidates,
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if !valid[i].Time.Equal(valid[j].Time) {
			return valid[i].Time.Before(valid[j].Time)
		}
		return valid[i].Weight > valid[j].Weight
	})

	selected := valid[0]

	agreements := 0
	for _, c := range valid {
		diff := c.Time.Sub(selected.Time)
		if diff < 0 {
			diff = -diff
		}
		if diff <= agreementTolerance {
			agreements++
		}
	}

	var confidence models.ConfidenceLevel
	switch {
	case selected.Weight >= 8 && agreements > 1:
		confidence = models.ConfidenceHigh
	case selected.Weight >= 5 || agreements > 1:
		confidence = models.ConfidenceMedium
	default:
		confidence = models.ConfidenceLow
	}

	t := selected.Time.UTC()
	return models.TimestampResult{
		Time:       &t,
		Source:     selected.Source,
		Confidence: confidence,
		Candidates: candidates,
	}
}

// parseDateTimeString parses a datetime from loosely formatted input:
// "2024:01:15 12:00:00", "20240115_120000", "2024-01-15T12:00:00-05:00".
// An explicit offset in the input wins over the default location. The
// result is converted to UTC.
func parseDateTimeString(input string, loc *time.Location) (time.Time, bool) {
	// Explicit offset in the raw input overrides the default zone.
	if tzMatch := timezoneRegex.FindString(input); tzMatch != "" {
		sign := 1
		if tzMatch[0] == '-' {
			sign = -1
		}
		digits := strings.ReplaceAll(tzMatch[1:], ":", "")
		hours, _ := strconv.Atoi(digits[:2])
		minutes := 0
		if len(digits) >= 4 {
			minutes, _ = strconv.Atoi(digits[2:4])
		}
		offset := sign * (hours*3600 + minutes*60)
		loc = time.FixedZone(tzMatch, offset)
	}

	stripped := strings.NewReplacer(":", "", "-", "", ".", "", "_", "").Replace(input)

	dateMatch := bareDateRegex.FindStringIndex(stripped)
	if dateMatch == nil {
		return time.Time{}, false
	}
	stripped = stripped[dateMatch[0]:]

	year, err := strconv.Atoi(stripped[:4])
	if err != nil || year < validYearMin || year > validYearMax {
		return time.Time{}, false
	}

	// Normalize to "YYYYMMDD HHMMSS".
	if len(stripped) < 9 {
		stripped += " 23" // No time, default to end of day
	} else if stripped[8] != ' ' {
		stripped = stripped[:8] + " " + stripped[8:]
	}
	for len(stripped) < 15 {
		stripped += "0"
	}

	month, err1 := strconv.Atoi(stripped[4:6])
	day, err2 := strconv.Atoi(stripped[6:8])
	hour, err3 := strconv.Atoi(stripped[9:11])
	minute, err4 := strconv.Atoi(stripped[11:13])
	second, err5 := strconv.Atoi(stripped[13:15])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); reject those.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t.UTC(), true
}
