package model

import "time"

// Shift represents a staffing requirement for a time window on a given day.
type Shift struct {
	ID            string    `json:"id" yaml:"id"`
	Start         time.Time `json:"start" yaml:"start"`
	End           time.Time `json:"end" yaml:"end"`
	Qualification string    `json:"qualification" yaml:"qualification"`
	Department    string    `json:"department" yaml:"department"`
	Headcount     int       `json:"headcount" yaml:"headcount"`
}

// Hours returns the shift duration in hours.
func (s Shift) Hours() float64 {
	return s.End.Sub(s.Start).Hours()
}

// Overlaps reports whether two shifts share any time.
func (s Shift) Overlaps(o Shift) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Validate checks that the shift record is sound before it reaches the solver.
func (s Shift) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Reason: "shift id must not be empty"}
	}
	if !s.End.After(s.Start) {
		return &ValidationError{Field: "end", Entity: s.ID, Reason: "must be after start"}
	}
	if s.Headcount <= 0 {
		return &ValidationError{Field: "headcount", Entity: s.ID, Reason: "must be positive"}
	}
	return nil
}
