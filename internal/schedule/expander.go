// Package schedule implements pure recurrence expansion: turning a
// recurrence specification into the ordered list of concrete booking
// windows it denotes.  Expansion never consults rooms or existing
// sessions; validating each generated window is the orchestrator's job.
package schedule

import (
	"time"

	"github.com/acadops/room-scheduler/internal/model"
)

// Expand materializes the recurrence spec into concrete windows, anchored
// at the calendar date of anchor (time-of-day on the anchor is ignored;
// the spec's time-of-day window applies to every generated date).
//
// Windows come back in non-decreasing start order.  Generation stops at
// whichever termination bound is reached first: the Nth window when a
// count was given, or the first date past the end date.  A run bounded
// only by an end date that would exceed model.MaxExpansionWindows is
// rejected rather than truncated.
func Expand(anchor time.Time, spec model.RecurrenceSpec) ([]model.TimeWindow, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	anchor = anchor.UTC()
	date := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	if spec.Mode == model.RepeatNone {
		return []model.TimeWindow{windowOn(date, spec)}, nil
	}

	// When the run is bounded only by an end date, generate one window
	// past the safety cap: reaching it proves the end date never
	// terminated the series and the spec is rejected below.
	limit := spec.Count
	if limit == 0 {
		limit = model.MaxExpansionWindows + 1
	}

	var endDate time.Time
	if spec.EndDate != nil {
		e := spec.EndDate.UTC()
		endDate = time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	}
	pastEnd := func(d time.Time) bool {
		return spec.EndDate != nil && d.After(endDate)
	}

	var out []model.TimeWindow
	switch spec.Mode {
	case model.RepeatDaily, model.RepeatWeekly:
		step := 1
		if spec.Mode == model.RepeatWeekly {
			step = 7
		}
		for d := date; len(out) < limit && !pastEnd(d); d = d.AddDate(0, 0, step) {
			out = append(out, windowOn(d, spec))
		}

	case model.RepeatWeeklyDays:
		// Scan day by day rather than week by week so irregular week
		// boundaries around the anchor are handled uniformly.
		sel := make(map[time.Weekday]bool, len(spec.Weekdays))
		for _, wd := range spec.Weekdays {
			sel[wd] = true
		}
		for d := date; len(out) < limit && !pastEnd(d); d = d.AddDate(0, 0, 1) {
			if sel[d.Weekday()] {
				out = append(out, windowOn(d, spec))
			}
		}

	case model.RepeatMonthly:
		// Same day-of-month as the anchor; a day the short month lacks
		// (e.g. the 31st in February) clamps to the month's last day.
		for i := 0; len(out) < limit; i++ {
			first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
			day := date.Day()
			if last := daysIn(first.Year(), first.Month()); day > last {
				day = last
			}
			d := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
			if pastEnd(d) {
				break
			}
			out = append(out, windowOn(d, spec))
		}
	}

	if spec.Count == 0 && len(out) > model.MaxExpansionWindows {
		return nil, &model.ValidationError{Field: "end_date", Reason: "expansion exceeds the per-run window limit"}
	}
	return out, nil
}

// windowOn applies the spec's time-of-day window to a concrete date.
func windowOn(date time.Time, spec model.RecurrenceSpec) model.TimeWindow {
	return model.TimeWindow{Start: spec.StartTime.On(date), End: spec.EndTime.On(date)}
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
