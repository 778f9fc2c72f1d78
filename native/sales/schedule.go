package sales

const (
	daySeconds = 24 * 60 * 60
	weekDays   = 7
	// Listings created while weekly batching is disabled open shortly
	// after submission.
	disabledStartOffset = 10 * 60
)

// NextScheduleDay returns the unix timestamp at which the next listing
// window opens. An anchor of 0 disables weekly batching and opens the
// window ten minutes from now. Otherwise the anchor is a weekday (unix
// epoch day 0 was a Thursday, hence the +4 offset); when today matches the
// anchor the next occurrence is a full week from the start of today, so
// windows stay deterministic regardless of time of day.
func NextScheduleDay(anchor uint8, now int64) int64 {
	if anchor == 0 {
		return now + disabledStartOffset
	}
	days := now / daySeconds
	today := uint8((days + 4) % weekDays)
	startOfDay := days * daySeconds
	if today == anchor {
		return startOfDay + weekDays*daySeconds
	}
	return startOfDay + int64((anchor+weekDays-today)%weekDays)*daySeconds
}
