package scheduler

import "time"

// IntervalSchedule runs a job at a fixed distance from its previous run.
// The interval is measured from the start of the last run, not its end.
type IntervalSchedule struct {
	every time.Duration
}

// NewIntervalSchedule creates a fixed-interval schedule. Non-positive
// intervals are clamped to one minute.
func NewIntervalSchedule(every time.Duration) *IntervalSchedule {
	if every <= 0 {
		every = time.Minute
	}
	return &IntervalSchedule{every: every}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

// String implements Schedule.
func (s *IntervalSchedule) String() string {
	return "@every " + s.every.String()
}
