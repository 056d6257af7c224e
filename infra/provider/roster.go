package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rotacore/rota/core/model"
)

// fileEmployee is the on-disk employee shape. Availability is keyed by
// weekday name for readable roster files.
type fileEmployee struct {
	ID              string                    `json:"id" yaml:"id"`
	Name            string                    `json:"name" yaml:"name"`
	Qualifications  []string                  `json:"qualifications" yaml:"qualifications"`
	Availability    map[string][]model.Window `json:"availability" yaml:"availability"`
	MaxHoursPerWeek float64                   `json:"max_hours_per_week" yaml:"max_hours_per_week"`
	HourlyRate      float64                   `json:"hourly_rate" yaml:"hourly_rate"`
	Active          *bool                     `json:"active,omitempty" yaml:"active,omitempty"`
}

// FileRoster loads employees from a JSON or YAML file.
type FileRoster struct {
	Path string
}

// Employees implements orchestrator.RosterProvider.
func (f FileRoster) Employees(_ context.Context) ([]model.Employee, error) {
	var raw []fileEmployee
	if err := decodeFile(f.Path, &raw); err != nil {
		return nil, err
	}
	out := make([]model.Employee, 0, len(raw))
	for _, fe := range raw {
		emp := model.Employee{
			ID:              fe.ID,
			Name:            fe.Name,
			Qualifications:  fe.Qualifications,
			MaxHoursPerWeek: fe.MaxHoursPerWeek,
			HourlyRate:      fe.HourlyRate,
			Active:          fe.Active == nil || *fe.Active,
		}
		if len(fe.Availability) > 0 {
			emp.Availability = make(map[time.Weekday][]model.Window, len(fe.Availability))
			for name, windows := range fe.Availability {
				day, err := parseWeekday(name)
				if err != nil {
					return nil, fmt.Errorf("employee %s: %w", fe.ID, err)
				}
				emp.Availability[day] = windows
			}
		}
		out = append(out, emp)
	}
	return out, nil
}
