package csvio

import "testing"

func TestSelectionStarIsIdentity(t *testing.T) {
	// spec invariant 2: selection "*" resolves to 0..arity in order.
	headers := FromStrings([]string{"a", "b", "c"})
	sel, err := ResolveSelection("*", headers, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	want := []int{0, 1, 2}
	if len(sel.Indices) != len(want) {
		t.Fatalf("got %v want %v", sel.Indices, want)
	}
	for i := range want {
		if sel.Indices[i] != want[i] {
			t.Fatalf("got %v want %v", sel.Indices, want)
		}
	}
}

func TestSelectionByName(t *testing.T) {
	headers := FromStrings([]string{"id", "name", "value"})
	sel, err := ResolveSelection("name,id", headers, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel.Indices) != 2 || sel.Indices[0] != 1 || sel.Indices[1] != 0 {
		t.Fatalf("got %v, want [1 0]", sel.Indices)
	}
}

func TestSelectionRange(t *testing.T) {
	headers := FromStrings([]string{"a", "b", "c", "d"})
	sel, err := ResolveSelection("b:d", headers, 4)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel.Indices) != 3 || sel.Indices[0] != 1 || sel.Indices[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", sel.Indices)
	}
}

func TestSelectionNegation(t *testing.T) {
	headers := FromStrings([]string{"a", "b", "c"})
	sel, err := ResolveSelection("!b", headers, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel.Indices) != 2 || sel.Indices[0] != 0 || sel.Indices[1] != 2 {
		t.Fatalf("got %v, want [0 2]", sel.Indices)
	}
}

func TestSelectionNthDuplicate(t *testing.T) {
	headers := FromStrings([]string{"x", "x", "x"})
	sel, err := ResolveSelection("x[1]", headers, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel.Indices) != 1 || sel.Indices[0] != 1 {
		t.Fatalf("got %v, want [1]", sel.Indices)
	}

	sel2, err := ResolveSelection("x[-1]", headers, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel2.Indices) != 1 || sel2.Indices[0] != 2 {
		t.Fatalf("got %v, want [2]", sel2.Indices)
	}
}

func TestSelectionUnknownColumn(t *testing.T) {
	headers := FromStrings([]string{"a", "b"})
	_, err := ResolveSelection("nope", headers, 2)
	if err == nil {
		t.Fatal("expected an error for unknown column")
	}
}

func TestSelectionNegativeIndex(t *testing.T) {
	sel, err := ResolveSelection("-1", nil, 3)
	if err != nil {
		t.Fatalf("ResolveSelection: %v", err)
	}
	if len(sel.Indices) != 1 || sel.Indices[0] != 2 {
		t.Fatalf("got %v, want [2]", sel.Indices)
	}
}

func TestSelectionOutOfBounds(t *testing.T) {
	_, err := ResolveSelection("5", nil, 3)
	if err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestAll(t *testing.T) {
	sel := All(4)
	want := []int{0, 1, 2, 3}
	for i := range want {
		if sel.Indices[i] != want[i] {
			t.Fatalf("got %v want %v", sel.Indices, want)
		}
	}
}
