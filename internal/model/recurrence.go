package model

import (
	"fmt"
	"time"
)

// RepeatMode selects how a recurrence pattern advances from its anchor
// date.  The closed set of values replaces the free-form strings the
// legacy portal stored, so an invalid mode is unrepresentable past the
// orchestrator boundary.
type RepeatMode string

const (
	RepeatNone       RepeatMode = "NONE"        // single occurrence on the anchor date
	RepeatDaily      RepeatMode = "DAILY"       // every calendar day
	RepeatWeekly     RepeatMode = "WEEKLY"      // every 7 days from the anchor
	RepeatWeeklyDays RepeatMode = "WEEKLY_DAYS" // selected weekdays, scanned day by day
	RepeatMonthly    RepeatMode = "MONTHLY"     // same day-of-month each month
)

// Valid reports whether m is one of the known repeat modes.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatWeeklyDays, RepeatMonthly:
		return true
	}
	return false
}

// MaxExpansionWindows caps how many concrete windows a single recurrence
// run may materialize.  A runaway spec (count omitted, end date years out)
// is rejected instead of flooding the sessions table.
const MaxExpansionWindows = 366

// RecurrenceSpec describes how to expand an anchor date into a series of
// concrete booking windows.  It is ephemeral: the engine materializes the
// resulting sessions up front and never persists the spec itself.
//
// Termination requires at least one of EndDate or Count.  When both are
// given, whichever bound is reached first wins.
type RecurrenceSpec struct {
	Mode      RepeatMode     // how the pattern advances
	Weekdays  []time.Weekday // required, non-empty, for WEEKLY_DAYS; ignored otherwise
	StartTime TimeOfDay      // time-of-day window start applied to each generated date
	EndTime   TimeOfDay      // time-of-day window end, strictly after StartTime
	EndDate   *time.Time     // generate no window whose date is after this (inclusive bound)
	Count     int            // stop after this many windows; 0 means unbounded by count
}

// TimeOfDay is a wall-clock time applied to a generated calendar date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// On anchors the time-of-day to a concrete date in UTC.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, time.UTC)
}

// ValidationError reports a malformed request before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validate checks structural correctness of the spec.  It does not look at
// rooms or existing sessions; that is the orchestrator's job.
func (s RecurrenceSpec) Validate() error {
	if !s.Mode.Valid() {
		return &ValidationError{Field: "mode", Reason: "unknown repeat mode"}
	}
	if s.Mode == RepeatWeeklyDays && len(s.Weekdays) == 0 {
		return &ValidationError{Field: "weekdays", Reason: "WEEKLY_DAYS requires at least one weekday"}
	}
	if s.StartTime.Hour < 0 || s.StartTime.Hour > 23 || s.StartTime.Minute < 0 || s.StartTime.Minute > 59 {
		return &ValidationError{Field: "start_time", Reason: "out of range"}
	}
	if s.EndTime.Hour < 0 || s.EndTime.Hour > 23 || s.EndTime.Minute < 0 || s.EndTime.Minute > 59 {
		return &ValidationError{Field: "end_time", Reason: "out of range"}
	}
	startMin := s.StartTime.Hour*60 + s.StartTime.Minute
	endMin := s.EndTime.Hour*60 + s.EndTime.Minute
	if startMin >= endMin {
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if s.Count < 0 {
		return &ValidationError{Field: "count", Reason: "must not be negative"}
	}
	if s.Mode != RepeatNone && s.Count == 0 && s.EndDate == nil {
		return &ValidationError{Field: "count", Reason: "either count or end_date is required"}
	}
	if s.Count > MaxExpansionWindows {
		return &ValidationError{Field: "count", Reason: fmt.Sprintf("must not exceed %d", MaxExpansionWindows)}
	}
	return nil
}
