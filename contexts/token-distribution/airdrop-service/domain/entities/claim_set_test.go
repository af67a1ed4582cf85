package entities

import (
	"reflect"
	"testing"
)

func TestNewClaimSetPicksRepresentation(t *testing.T) {
	if kind := NewClaimSet(10).Kind(); kind != ClaimSetDense {
		t.Fatalf("expected dense set for small campaigns, got %s", kind)
	}
	if kind := NewClaimSet(DenseClaimSetLimit + 1).Kind(); kind != ClaimSetSparse {
		t.Fatalf("expected sparse set above the dense limit, got %s", kind)
	}
}

func TestClaimSetsAddOnce(t *testing.T) {
	for _, set := range []ClaimSet{NewDenseClaimSet(130), NewSparseClaimSet()} {
		for _, index := range []uint64{129, 0, 64, 63} {
			if !set.Add(index) {
				t.Fatalf("%s: first add of %d failed", set.Kind(), index)
			}
		}
		if set.Add(64) {
			t.Fatalf("%s: second add of 64 succeeded", set.Kind())
		}
		if set.Count() != 4 || !set.Contains(63) || set.Contains(65) {
			t.Fatalf("%s: unexpected contents %v", set.Kind(), set.Indices())
		}
		if got := set.Indices(); !reflect.DeepEqual(got, []uint64{0, 63, 64, 129}) {
			t.Fatalf("%s: expected sorted indices, got %v", set.Kind(), got)
		}
	}
}

func TestDenseClaimSetRejectsOutOfRange(t *testing.T) {
	set := NewDenseClaimSet(3)
	if set.Add(3) || set.Contains(3) {
		t.Fatalf("index equal to max_index must be rejected")
	}
}

func TestParseAddressLeftPads(t *testing.T) {
	short, err := ParseAddress("0x1")
	if err != nil {
		t.Fatalf("parse short address: %v", err)
	}
	long, err := ParseAddress("0x0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("parse long address: %v", err)
	}
	if short != long {
		t.Fatalf("expected padded forms to match")
	}
	if _, err := ParseAddress("0xzz"); err == nil {
		t.Fatalf("expected invalid hex to fail")
	}
}
