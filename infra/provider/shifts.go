package provider

import (
	"context"
	"time"

	"github.com/rotacore/rota/core/model"
)

// FileShifts loads shift requirements from a JSON or YAML file. Start and
// end times are RFC3339 timestamps.
type FileShifts struct {
	Path string
}

// Shifts implements orchestrator.ShiftProvider; only shifts starting inside
// [from, to) are returned.
func (f FileShifts) Shifts(_ context.Context, from, to time.Time) ([]model.Shift, error) {
	var all []model.Shift
	if err := decodeFile(f.Path, &all); err != nil {
		return nil, err
	}
	out := make([]model.Shift, 0, len(all))
	for _, s := range all {
		if !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}
