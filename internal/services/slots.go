package services

import (
	"math/rand"
	"time"
)

// QuizTimeSlots spreads count fire times over [startHour, endHour) of the day
// after now. The window is cut into count equal segments and each time is a
// random minute inside its own segment, so the result is strictly increasing.
// An invalid window yields nil.
func QuizTimeSlots(now time.Time, count, startHour, endHour int, rnd *rand.Rand) []time.Time {
	if count <= 0 || startHour < 0 || endHour > 24 || endHour <= startHour {
		return nil
	}

	window := (endHour - startHour) * 60
	if count > window {
		count = window
	}
	segment := window / count

	y, m, d := now.Date()
	slots := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		minute := startHour*60 + i*segment + rnd.Intn(segment)
		slots = append(slots, time.Date(y, m, d+1, 0, minute, 0, 0, now.Location()))
	}
	return slots
}

// nextMidnight is 00:00 of the day after now, in now's location.
func nextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
