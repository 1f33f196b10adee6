package shared

import (
	"fmt"
	"time"
)

// BusinessOffset is the fixed UTC offset of the business calendar (Brasília, no DST).
// Day boundaries are fixed-offset on purpose: stored data encodes local
// midnight as 03:00 UTC.
const BusinessOffset = -3 * time.Hour

// DayWindowFunc computes the local calendar day containing ref
type DayWindowFunc func(ref time.Time) (start, end time.Time)

// LocalDayWindow returns the local calendar day containing ref as UTC instants.
// start is 03:00:00 UTC and end is 02:59:59 UTC of the following day.
func LocalDayWindow(ref time.Time) (start, end time.Time) {
	start = StartOfLocalDay(ref)
	return start, start.Add(24*time.Hour - time.Second)
}

// StartOfLocalDay returns local midnight of the day containing ref, in UTC
func StartOfLocalDay(ref time.Time) time.Time {
	local := ref.UTC().Add(BusinessOffset)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-BusinessOffset)
}

// NextLocalDayStart returns the exclusive upper bound of the local day containing ref
func NextLocalDayStart(ref time.Time) time.Time {
	return StartOfLocalDay(ref).Add(24 * time.Hour)
}

// LocalDaysBetween counts whole local calendar days from a to b.
// It is negative when b falls on an earlier local day.
func LocalDaysBetween(a, b time.Time) int {
	return int(StartOfLocalDay(b).Sub(StartOfLocalDay(a)) / (24 * time.Hour))
}

// LocalMonthWindow parses a "YYYY-MM" reference month and returns
// [start, next) where start is local midnight of the first day.
func LocalMonthWindow(referenceMonth string) (start, next time.Time, err error) {
	month, err := time.Parse("2006-01", referenceMonth)
	if err != nil {
		return time.Time{}, time.Time{}, NewDomainErrorf("INVALID_INPUT", "Reference month %q must be formatted as YYYY-MM", referenceMonth)
	}
	start = month.Add(-BusinessOffset)
	next = month.AddDate(0, 1, 0).Add(-BusinessOffset)
	return start, next, nil
}

// LocalMonthOf formats the local reference month containing ref
func LocalMonthOf(ref time.Time) string {
	return ref.UTC().Add(BusinessOffset).Format("2006-01")
}

// FormatLocalDate renders the local calendar date of ref
func FormatLocalDate(ref time.Time) string {
	return ref.UTC().Add(BusinessOffset).Format("2006-01-02")
}

// ParseLocalDate parses "YYYY-MM-DD" as local midnight
func ParseLocalDate(value string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse local date %q: %w", value, err)
	}
	return d.Add(-BusinessOffset), nil
}
