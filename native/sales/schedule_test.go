package sales

import "testing"

func TestNextScheduleDayDisabled(t *testing.T) {
	now := int64(1_700_000_123)
	if got := NextScheduleDay(0, now); got != now+600 {
		t.Fatalf("disabled anchor: want %d, got %d", now+600, got)
	}
}

func TestNextScheduleDayFutureWeekday(t *testing.T) {
	// unix epoch day 0 is a Thursday (weekday 4)
	now := int64(1_000) // Thursday, shortly after midnight
	if got := NextScheduleDay(5, now); got != 1*daySeconds {
		t.Fatalf("next Friday: want %d, got %d", 1*daySeconds, got)
	}
	if got := NextScheduleDay(3, now); got != 6*daySeconds {
		t.Fatalf("next Wednesday: want %d, got %d", 6*daySeconds, got)
	}
}

func TestNextScheduleDaySameWeekdayRollsAWeek(t *testing.T) {
	now := int64(12 * 60 * 60) // Thursday noon
	if got := NextScheduleDay(4, now); got != 7*daySeconds {
		t.Fatalf("same weekday: want %d, got %d", 7*daySeconds, got)
	}
}

func TestNextScheduleDayIgnoresTimeOfDay(t *testing.T) {
	// both are the same Saturday, morning and late evening
	morning := int64(2 * daySeconds)
	evening := morning + 23*60*60
	if NextScheduleDay(1, morning) != NextScheduleDay(1, evening) {
		t.Fatalf("window must not depend on the time of day")
	}
}
