package pacing

import (
	"time"

	"github.com/rotisserie/eris"
)

// Window is a daily operating window in local "15:04" form. A zero Window
// covers the whole day. End before Start wraps past midnight.
type Window struct {
	Start, End string
}

func (w Window) IsZero() bool { return w.Start == "" && w.End == "" }

// Validate checks both bounds parse.
func (w Window) Validate() error {
	if w.IsZero() {
		return nil
	}
	if _, err := time.Parse("15:04", w.Start); err != nil {
		return eris.Wrapf(err, "pacing: window start %q", w.Start)
	}
	if _, err := time.Parse("15:04", w.End); err != nil {
		return eris.Wrapf(err, "pacing: window end %q", w.End)
	}
	return nil
}

// Contains reports whether now falls inside the window.
func (w Window) Contains(now time.Time) bool {
	if w.IsZero() || w.Validate() != nil {
		return true
	}
	s, _ := time.Parse("15:04", w.Start)
	e, _ := time.Parse("15:04", w.End)
	mins := now.Hour()*60 + now.Minute()
	lo, hi := s.Hour()*60+s.Minute(), e.Hour()*60+e.Minute()
	if lo <= hi {
		return mins >= lo && mins < hi
	}
	return mins >= lo || mins < hi
}
