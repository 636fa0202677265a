package store

import "time"

// ResolveTimeRange maps a named range to [start, end) calendar boundaries.
// Weeks start on Monday; unknown names fall back to the trailing 7 days.
func ResolveTimeRange(name string, now time.Time) (time.Time, time.Time) {
	switch name {
	case "last_week":
		start := startOfWeek(now).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7)
	case "this_week":
		start := startOfWeek(now)
		return start, start.AddDate(0, 0, 7)
	case "last_month":
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return end.AddDate(0, -1, 0), end
	case "this_month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return now.AddDate(0, 0, -7), now
	}
}

func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday.
	}
	day := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
