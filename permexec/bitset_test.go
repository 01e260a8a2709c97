package permexec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBitset(t *testing.T) {
	var b Bitset
	if !b.Empty() || b.Count() != 0 || b.Test(3) {
		t.Fatal("zero Bitset should be empty")
	}
	b.Set(3)
	b.Set(70)
	b.Set(3)
	if diff := cmp.Diff([]int{3, 70}, b.Elements()); diff != "" {
		t.Errorf("Elements mismatch (-want +got):\n%s", diff)
	}
	if b.Test(-1) || b.Test(1000) {
		t.Error("out-of-range Test should be false")
	}

	o := BitsetOf(70, 5)
	if !b.Intersects(o) {
		t.Error("expected {3,70} and {5,70} to intersect")
	}
	c := b.Clone()
	if !c.Or(o) {
		t.Error("Or should report a change")
	}
	if c.Or(o) {
		t.Error("second Or should report no change")
	}
	if b.Count() != 2 {
		t.Error("Clone must not share storage")
	}
	if !b.SubsetOf(c) || c.SubsetOf(b) {
		t.Error("unexpected subset relation")
	}
	if !NewBitset(256).Equal(Bitset{}) {
		t.Error("empty sets of different capacity should be equal")
	}
	if NewBitset(256).key() != (Bitset{}).key() {
		t.Error("empty sets should share a key")
	}
	if got := c.String(); got != "{3,5,70}" {
		t.Errorf("String() = %q", got)
	}
}
