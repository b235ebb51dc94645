// Package macro resolves date and week placeholders in harvest queries.
//
// Placeholders have the form ${__NAME__}. Recognised names:
//
//	TIME_OF_LAST_HARVEST          watermark, minute precision UTC
//	NOW                           asOf, minute precision UTC
//	NEXTWEEK_<CODE>               <CODE><YYYY><WW> for the week after asOf
//	WEEK_PLUS_<n>, WEEK_MINUS_<n> <YYYY><WW> for asOf shifted n weeks
//	WEEKCODE_<CODE>[_MINUS_<n>]   week code from the week resolver
//
// Anything else is left untouched.
package macro

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the format used for TIME_OF_LAST_HARVEST and NOW.
const TimestampLayout = "2006-01-02T15:04:00Z"

var (
	placeholderRe = regexp.MustCompile(`\$\{__([A-Z0-9_]+)__\}`)
	nextWeekRe    = regexp.MustCompile(`^NEXTWEEK_([A-Z]+)$`)
	weekShiftRe   = regexp.MustCompile(`^WEEK_(PLUS|MINUS)_(\d+)$`)
	weekCodeRe    = regexp.MustCompile(`^WEEKCODE_([A-Z]+)(?:_MINUS_(\d+))?$`)
)

// WeekResolver returns the current week code of a catalogue code for a date.
type WeekResolver interface {
	CurrentWeekCode(ctx context.Context, catalogueCode string, date time.Time) (string, error)
}

// Substitutor replaces placeholders in a query template.
type Substitutor struct {
	watermark *time.Time
	location  *time.Location
	resolver  WeekResolver
}

// NewSubstitutor creates a Substitutor. A nil watermark resolves to the Unix
// epoch, a nil location to UTC. resolver may be nil when templates never
// contain WEEKCODE placeholders.
func NewSubstitutor(watermark *time.Time, location *time.Location, resolver WeekResolver) *Substitutor {
	if location == nil {
		location = time.UTC
	}
	return &Substitutor{watermark: watermark, location: location, resolver: resolver}
}

// Replace resolves every known placeholder in template relative to asOf.
// Each WEEKCODE occurrence is resolved with its own resolver call.
func (s *Substitutor) Replace(ctx context.Context, template string, asOf time.Time) (string, error) {
	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := placeholderRe.FindStringSubmatch(match)[1]
		value, ok, err := s.resolve(ctx, name, asOf)
		if err != nil {
			firstErr = err
			return match
		}
		if !ok {
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (s *Substitutor) resolve(ctx context.Context, name string, asOf time.Time) (string, bool, error) {
	switch name {
	case "TIME_OF_LAST_HARVEST":
		wm := time.Unix(0, 0)
		if s.watermark != nil {
			wm = *s.watermark
		}
		return FormatTimestamp(wm), true, nil
	case "NOW":
		return FormatTimestamp(asOf), true, nil
	}

	if m := nextWeekRe.FindStringSubmatch(name); m != nil {
		return m[1] + s.weekNumber(asOf, 1), true, nil
	}
	if m := weekShiftRe.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", false, nil
		}
		if m[1] == "MINUS" {
			n = -n
		}
		return s.weekNumber(asOf, n), true, nil
	}
	if m := weekCodeRe.FindStringSubmatch(name); m != nil {
		back := 0
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				return "", false, nil
			}
			back = n
		}
		if s.resolver == nil {
			return "", false, fmt.Errorf("macro %s: no week resolver configured", name)
		}
		date := asOf.In(s.location).AddDate(0, 0, -7*back)
		code, err := s.resolver.CurrentWeekCode(ctx, m[1], date)
		if err != nil {
			return "", false, fmt.Errorf("macro %s: %w", name, err)
		}
		return code, true, nil
	}
	return "", false, nil
}

// weekNumber formats the ISO year and week of asOf shifted by weeks, in the
// substitutor's location.
func (s *Substitutor) weekNumber(asOf time.Time, weeks int) string {
	year, week := asOf.In(s.location).AddDate(0, 0, 7*weeks).ISOWeek()
	return fmt.Sprintf("%04d%02d", year, week)
}

// FormatTimestamp renders t in UTC truncated to the minute.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format(TimestampLayout)
}
