package game

import (
	"testing"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(Standard())

	got, ok := r.Get("standard")
	if !ok {
		t.Fatal("expected to find registered ruleset")
	}
	if got.Lanes != 9 {
		t.Fatalf("expected 9 lanes, got %d", got.Lanes)
	}

	_, ok = r.Get("nonexistent")
	if ok {
		t.Fatal("expected not found for unregistered ruleset")
	}
}

func TestRegistryList(t *testing.T) {
	r := DefaultRegistry()

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 rulesets, got %d", len(list))
	}
	if list[0].Name != "siege" || list[1].Name != "skirmish" || list[2].Name != "standard" {
		t.Fatalf("expected sorted [siege skirmish standard], got [%s %s %s]", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestRegistryListEmpty(t *testing.T) {
	r := NewRegistry()
	if n := len(r.List()); n != 0 {
		t.Fatalf("expected 0 rulesets, got %d", n)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(Standard())

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(Standard()) // should panic
}

func TestRegistryAddRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	rs := Standard()
	rs.Name = "broken"
	rs.HandSize = 20
	if err := r.Add(rs); err == nil {
		t.Fatal("expected error for ruleset whose deck cannot deal two hands")
	}
	if _, ok := r.Get("broken"); ok {
		t.Fatal("invalid ruleset should not be registered")
	}
}

func TestRulesetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Ruleset)
		ok     bool
	}{
		{"standard", func(*Ruleset) {}, true},
		{"no name", func(r *Ruleset) { r.Name = "" }, false},
		{"no lanes", func(r *Ruleset) { r.Lanes = 0 }, false},
		{"too many colors", func(r *Ruleset) { r.Colors = MaxColors + 1 }, false},
		{"no win condition", func(r *Ruleset) { r.AdjacentToWin, r.TotalToWin = 0, 0 }, false},
		{"win beyond lanes", func(r *Ruleset) { r.TotalToWin = 10 }, false},
		{"unknown tie break", func(r *Ruleset) { r.TieBreak = "coin" }, false},
		{"reinforce on single-card lanes", func(r *Ruleset) { r.Reinforcements, r.LaneCapacity = 1, 1 }, false},
		{"adjacent only", func(r *Ruleset) { r.TotalToWin = 0 }, true},
		{"layout per lane", func(r *Ruleset) { *r = Siege() }, true},
		{"layout too short", func(r *Ruleset) { r.Layout = []LaneSpec{{Capacity: 3}} }, false},
		{"layout empty lane", func(r *Ruleset) { *r = Siege(); r.Layout[2].Capacity = 0 }, false},
		{"layout unknown pattern", func(r *Ruleset) { *r = Siege(); r.Layout[0].Pattern = "zigzag" }, false},
		{"reinforce with a long lane", func(r *Ruleset) {
			r.Reinforcements, r.LaneCapacity = 1, 1
			r.Layout = make([]LaneSpec, r.Lanes)
			for i := range r.Layout {
				r.Layout[i] = LaneSpec{Capacity: 1}
			}
			r.Layout[4].Capacity = 2
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := Standard()
			tt.mutate(&rs)
			err := rs.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
