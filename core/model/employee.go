package model

import "time"

// Window is an availability range within a day, expressed in minutes from
// midnight. End may exceed 24h*60 to cover shifts running past midnight.
type Window struct {
	StartMin int `json:"start_min" yaml:"start_min"`
	EndMin   int `json:"end_min" yaml:"end_min"`
}

// Contains reports whether the range [startMin, endMin) fits inside the window.
func (w Window) Contains(startMin, endMin int) bool {
	return startMin >= w.StartMin && endMin <= w.EndMin
}

// Employee represents a staff member that can be assigned to shifts.
type Employee struct {
	ID              string                    `json:"id" yaml:"id"`
	Name            string                    `json:"name" yaml:"name"`
	Qualifications  []string                  `json:"qualifications" yaml:"qualifications"`
	Availability    map[time.Weekday][]Window `json:"availability" yaml:"availability"`
	MaxHoursPerWeek float64                   `json:"max_hours_per_week" yaml:"max_hours_per_week"`
	HourlyRate      float64                   `json:"hourly_rate" yaml:"hourly_rate"`
	Active          bool                      `json:"active" yaml:"active"`
}

// Qualified reports whether the employee holds the given qualification.
// An empty qualification on the shift side means anyone may take it.
func (e Employee) Qualified(q string) bool {
	if q == "" {
		return true
	}
	for _, have := range e.Qualifications {
		if have == q {
			return true
		}
	}
	return false
}

// AvailableFor reports whether the shift fits entirely inside one of the
// employee's availability windows for the shift's weekday.
func (e Employee) AvailableFor(s Shift) bool {
	day := s.Start.Weekday()
	start := minuteOfDay(s.Start)
	end := start + int(s.End.Sub(s.Start).Minutes())
	for _, w := range e.Availability[day] {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

// AvailableOn reports whether the employee has any availability window on the
// given weekday.
func (e Employee) AvailableOn(day time.Weekday) bool {
	return len(e.Availability[day]) > 0
}

// Validate checks that the employee record is sound before it reaches the
// solver.
func (e Employee) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "employee id must not be empty"}
	}
	if e.MaxHoursPerWeek < 0 {
		return &ValidationError{Field: "max_hours_per_week", Entity: e.ID, Reason: "must not be negative"}
	}
	if e.HourlyRate < 0 {
		return &ValidationError{Field: "hourly_rate", Entity: e.ID, Reason: "must not be negative"}
	}
	for day, windows := range e.Availability {
		for _, w := range windows {
			if w.EndMin <= w.StartMin {
				return &ValidationError{Field: "availability", Entity: e.ID, Reason: "window end before start on " + day.String()}
			}
		}
	}
	return nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
