package market

import (
	"fmt"
	"time"
)

// IST is India Standard Time; it has no daylight saving.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const (
	openMinutes  = 9*60 + 15
	closeMinutes = 15*60 + 30
)

type Status struct {
	Open     bool
	Message  string
	NextOpen string
}

// StatusAt reports whether the Indian equity market is open at now (weekdays 9:15-15:30 IST).
func StatusAt(now time.Time) Status {
	ist := now.In(IST)
	minutes := ist.Hour()*60 + ist.Minute()

	switch ist.Weekday() {
	case time.Sunday:
		return Status{Message: "Market is closed on Sundays", NextOpen: "Monday 9:15 AM IST"}
	case time.Saturday:
		return Status{Message: "Market is closed on Saturdays", NextOpen: "Monday 9:15 AM IST"}
	}

	if minutes < openMinutes {
		return Status{
			Message:  fmt.Sprintf("Market opens at %d:%02d AM IST", openMinutes/60, openMinutes%60),
			NextOpen: fmt.Sprintf("Today %d:%02d AM IST", openMinutes/60, openMinutes%60),
		}
	}

	if minutes > closeMinutes {
		next := "Tomorrow 9:15 AM IST"
		if ist.Weekday() == time.Friday {
			next = "Monday 9:15 AM IST"
		}

		return Status{Message: "Market is closed for the day", NextOpen: next}
	}

	return Status{Open: true, Message: "Market is open"}
}

// ClosedMessage is the step message used when a trade is attempted outside market hours.
func (s Status) ClosedMessage() string {
	message := "Cannot execute trade: " + s.Message + "."
	if s.NextOpen != "" {
		message += " Next opening: " + s.NextOpen
	}

	return message
}

// AfterClose reports whether now is at or after the daily close in IST.
func AfterClose(now time.Time) bool {
	ist := now.In(IST)

	return ist.Hour()*60+ist.Minute() >= closeMinutes
}

// DayKey is the IST calendar day of t, e.g. "2026-10-16".
func DayKey(t time.Time) string {
	return t.In(IST).Format(time.DateOnly)
}
