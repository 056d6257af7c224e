package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
)

// window is one weekly sub-problem horizon, [start, end).
type window struct {
	start time.Time
	end   time.Time
}

// splitWeeks cuts the horizon into 7-day windows. The last window may be
// shorter.
func splitWeeks(from, to time.Time) []window {
	var out []window
	for cur := from; cur.Before(to); cur = cur.AddDate(0, 0, 7) {
		end := cur.AddDate(0, 0, 7)
		if end.After(to) {
			end = to
		}
		out = append(out, window{start: cur, end: end})
	}
	return out
}

// shiftsIn selects the shifts starting inside the window.
func shiftsIn(shifts []model.Shift, from, to time.Time) []model.Shift {
	var out []model.Shift
	for _, s := range shifts {
		if !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, s)
		}
	}
	return out
}

// carryBoundary extracts each employee's latest assignment end from a solved
// week. The next week's compile receives it as a rest-period boundary
// constraint.
func carryBoundary(p *compiler.Problem, pairs []compiler.Pair) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, pr := range pairs {
		id := p.Employees[pr.Emp].ID
		end := p.Shifts[pr.Shift].End
		if last, ok := out[id]; !ok || end.After(last) {
			out[id] = end
		}
	}
	return out
}

// fingerprint identifies the input snapshot, spec and seed. Identical
// fingerprints guarantee identical generation output.
func fingerprint(snap *snapshot, spec GenerateSpec, seed int64) string {
	payload := struct {
		Employees []model.Employee `json:"employees"`
		Shifts    []model.Shift    `json:"shifts"`
		Rules     []rule.Rule      `json:"rules"`
		Spec      GenerateSpec     `json:"spec"`
		Seed      int64            `json:"seed"`
	}{snap.employees, snap.shifts, snap.rules, spec, seed}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshaling plain data structs cannot fail; an empty fingerprint
		// only disables the unchanged-input shortcut.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
