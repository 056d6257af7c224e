package rule

import (
	"testing"
	"time"
)

func TestKindSets(t *testing.T) {
	hard := []Kind{MustWorkDay, UnavailableDay, MinRestHours}
	for _, k := range hard {
		if !k.Hard() || !k.Known() {
			t.Fatalf("%s must be a known hard kind", k)
		}
	}
	soft := []Kind{PreferDay, AvoidDay, PreferShift, Fairness, LaborCost}
	for _, k := range soft {
		if k.Hard() {
			t.Fatalf("%s must not be hard", k)
		}
		if !k.Known() {
			t.Fatalf("%s must be known", k)
		}
	}
	if Kind("night_owl").Known() {
		t.Fatalf("unknown kinds must not validate")
	}
}

func TestRuleValidate(t *testing.T) {
	cases := []struct {
		name string
		r    Rule
		ok   bool
	}{
		{"valid must work", Rule{ID: "r1", Kind: MustWorkDay, Params: Params{EmployeeID: "e1", Weekday: time.Monday}}, true},
		{"missing id", Rule{Kind: MustWorkDay, Params: Params{EmployeeID: "e1"}}, false},
		{"unknown kind", Rule{ID: "r1", Kind: "full_moon"}, false},
		{"must work without employee", Rule{ID: "r1", Kind: MustWorkDay}, false},
		{"prefer shift without shift", Rule{ID: "r1", Kind: PreferShift, Params: Params{EmployeeID: "e1"}}, false},
		{"rest without hours", Rule{ID: "r1", Kind: MinRestHours}, false},
		{"valid rest", Rule{ID: "r1", Kind: MinRestHours, Params: Params{Hours: 11}}, true},
		{"global fairness", Rule{ID: "r1", Kind: Fairness, Scope: ScopeGlobal, Weight: 1.5}, true},
	}
	for _, tc := range cases {
		err := tc.r.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
