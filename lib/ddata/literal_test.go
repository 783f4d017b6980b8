package ddata

import (
	"reflect"
	"testing"
)

func TestLiteralEncodeIsCanonical(t *testing.T) {
	a := Literal{Group: "g1", Labels: []string{"y", "x"}}
	b := Literal{Group: "g1", Labels: []string{"x", "y"}}

	if a.Encode() != b.Encode() {
		t.Errorf("Equal claims must encode identically: %q vs %q", a.Encode(), b.Encode())
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	literals := []Literal{
		{Group: "", Labels: []string{"ack1"}},
		{Group: "g1", Labels: []string{"a", "b", "c"}},
		{Group: "with|pipe", Labels: []string{"with,comma", "with\\backslash"}},
		{Group: "", Labels: []string{"|,\\"}},
	}

	for _, in := range literals {
		encoded := in.Encode()
		out, err := DecodeLiteral(encoded)
		if err != nil {
			t.Fatalf("Decode of %q failed: %v", encoded, err)
		}
		if out.Group != in.Group {
			t.Errorf("Group mismatch for %q: got %q, want %q", encoded, out.Group, in.Group)
		}
		if !reflect.DeepEqual(out.Labels, in.Labels) {
			t.Errorf("Labels mismatch for %q: got %v, want %v", encoded, out.Labels, in.Labels)
		}
	}
}

func TestDecodeLiteralErrors(t *testing.T) {
	invalid := []string{
		"",            // no separator
		"group",       // no separator
		"a|b|c",       // second pipe
		"a,b|c",       // comma in group
		"g|",          // no labels
		"g|a\\",       // dangling escape
	}

	for _, encoded := range invalid {
		if _, err := DecodeLiteral(encoded); err == nil {
			t.Errorf("Expected decode error for %q", encoded)
		}
	}
}

func TestDiff(t *testing.T) {
	prev := []string{"|a", "|b", "g|x,y"}
	curr := []string{"|b", "g|x,y", "|c", "|d"}

	update := Diff(prev, curr)

	if !reflect.DeepEqual(update.Inserts, []string{"|c", "|d"}) {
		t.Errorf("Expected inserts [|c |d], got %v", update.Inserts)
	}
	if !reflect.DeepEqual(update.Deletes, []string{"|a"}) {
		t.Errorf("Expected deletes [|a], got %v", update.Deletes)
	}
}

func TestDiffEmpty(t *testing.T) {
	update := Diff([]string{"|a"}, []string{"|a"})
	if !update.IsEmpty() {
		t.Errorf("Expected empty diff for identical sets, got %+v", update)
	}

	update = Diff(nil, nil)
	if !update.IsEmpty() {
		t.Errorf("Expected empty diff for nil sets, got %+v", update)
	}
}
