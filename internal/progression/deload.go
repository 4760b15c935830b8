package progression

// DefaultDeloadEveryWeeks is the cadence used when the service is not
// configured otherwise.
const DefaultDeloadEveryWeeks = 4

// DeloadSchedule decides which weeks of a training block are deload weeks.
type DeloadSchedule struct {
	// EveryWeeks marks every Nth week as a deload. Zero or negative disables
	// cadence deloads; the final week of the block is always a deload.
	EveryWeeks int
}

// IsDeloadWeek reports whether weekNumber of a block of durationWeeks is a
// deload week.
func (s DeloadSchedule) IsDeloadWeek(weekNumber, durationWeeks int) bool {
	if weekNumber == durationWeeks {
		return true
	}
	return s.EveryWeeks > 0 && weekNumber%s.EveryWeeks == 0
}
