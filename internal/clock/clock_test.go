package clock

import "testing"

func TestBumpOnlyRaises(t *testing.T) {
	m := New()
	m.Bump("a", 3)
	m.Bump("a", 1)
	if got := m.Get("a"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestMergeTakesMax(t *testing.T) {
	a := Map{"x": 2, "y": 5}
	b := Map{"x": 4, "z": 1}

	merged := a.Merge(b)

	if merged.Get("x") != 4 {
		t.Errorf("expected x=4, got %d", merged.Get("x"))
	}
	if merged.Get("y") != 5 {
		t.Errorf("expected y=5, got %d", merged.Get("y"))
	}
	if merged.Get("z") != 1 {
		t.Errorf("expected z=1, got %d", merged.Get("z"))
	}
	// original maps untouched
	if _, ok := a["z"]; ok {
		t.Error("Merge mutated its receiver")
	}
}

func TestWithoutScrubsActor(t *testing.T) {
	m := Map{"0000000000": 1, "alice": 4}
	scrubbed := m.Without("0000000000")
	if _, ok := scrubbed["0000000000"]; ok {
		t.Error("phantom actor still present after Without")
	}
	if scrubbed.Get("alice") != 4 {
		t.Error("Without dropped an unrelated actor")
	}
}

func TestDominates(t *testing.T) {
	m := Map{"a": 3, "b": 2}
	if !m.Dominates(Map{"a": 2}) {
		t.Error("expected m to dominate a subset clock")
	}
	if m.Dominates(Map{"a": 4}) {
		t.Error("m should not dominate a clock ahead of it")
	}
	if m.Dominates(Map{"c": 1}) {
		t.Error("m should not dominate an actor it has never seen")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := Map{"a": 1}
	c := m.Clone()
	c.Set("a", 2)
	if m.Get("a") != 1 {
		t.Error("mutating the clone affected the original")
	}
}
