package core

import "testing"

func TestCoreCorticalIDReservedIndex(t *testing.T) {
	cases := []struct {
		id   CorticalID
		want CorticalIndex
	}{
		{DeathCorticalID, DeathCorticalIndex},
		{PowerCorticalID, PowerCorticalIndex},
		{FatigueCorticalID, FatigueCorticalIndex},
	}

	for _, c := range cases {
		idx, ok := c.id.Category().ReservedIndex()
		if !ok {
			t.Fatalf("expected %v to be a core category", c.id)
		}
		if idx != c.want {
			t.Errorf("expected reserved index %d, got %d", c.want, idx)
		}
	}
}

func TestCustomCorticalIDIsNotReserved(t *testing.T) {
	id := NewCustomCorticalID("v1")
	if _, ok := id.Category().ReservedIndex(); ok {
		t.Error("custom cortical id should not report a reserved index")
	}
	if id.Category().Kind != CategoryCustom {
		t.Errorf("expected CategoryCustom, got %v", id.Category().Kind)
	}
}

func TestCorticalIDRoundTrip(t *testing.T) {
	id := NewCustomCorticalID("memory1")

	encoded := id.String()
	decoded, err := CorticalIDFromString(encoded)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded != id {
		t.Errorf("round trip mismatch: got %v, want %v", decoded, id)
	}
	if decoded.Category() != id.Category() {
		t.Errorf("category mismatch after round trip: got %v, want %v", decoded.Category(), id.Category())
	}
}

func TestCorticalIDFromStringRejectsBadLength(t *testing.T) {
	if _, err := CorticalIDFromString("AA"); err == nil {
		t.Error("expected error decoding a too-short cortical id")
	}
}

func TestNamedIDsAreStableForSameName(t *testing.T) {
	a := NewCustomCorticalID("v1")
	b := NewCustomCorticalID("v1")
	if a != b {
		t.Error("same name should produce the same cortical id")
	}

	c := NewCustomCorticalID("v2")
	if a == c {
		t.Error("different names should produce different cortical ids")
	}
}

func TestCorticalIndexIsReserved(t *testing.T) {
	for idx := CorticalIndex(0); idx < 3; idx++ {
		if !idx.IsReserved() {
			t.Errorf("expected index %d to be reserved", idx)
		}
	}
	if CorticalIndex(3).IsReserved() {
		t.Error("index 3 should not be reserved")
	}
}
