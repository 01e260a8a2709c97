package permexec

import (
	"math/bits"
	"strconv"
	"strings"
)

// Bitset is a growable set of small non-negative integers. The zero value is
// an empty set.
type Bitset struct {
	words []uint64
}

// NewBitset returns an empty set sized for n elements.
func NewBitset(n int) Bitset {
	return Bitset{words: make([]uint64, (n+63)/64)}
}

// BitsetOf returns the set containing xs.
func BitsetOf(xs ...int) Bitset {
	var b Bitset
	for _, x := range xs {
		b.Set(x)
	}
	return b
}

// Set adds x.
func (b *Bitset) Set(x int) {
	w := x / 64
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}
	b.words[w] |= 1 << (uint(x) % 64)
}

// Test reports whether x is in b.
func (b Bitset) Test(x int) bool {
	if x < 0 {
		return false
	}
	w := x / 64
	return w < len(b.words) && b.words[w]&(1<<(uint(x)%64)) != 0
}

// Or adds every element of o to b and reports whether b changed.
func (b *Bitset) Or(o Bitset) bool {
	for len(b.words) < len(o.words) {
		b.words = append(b.words, 0)
	}
	changed := false
	for i, w := range o.words {
		if nw := b.words[i] | w; nw != b.words[i] {
			b.words[i] = nw
			changed = true
		}
	}
	return changed
}

// Intersects reports whether b and o share an element.
func (b Bitset) Intersects(o Bitset) bool {
	n := min(len(b.words), len(o.words))
	for i := 0; i < n; i++ {
		if b.words[i]&o.words[i] != 0 {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every element of b is in o.
func (b Bitset) SubsetOf(o Bitset) bool {
	for i, w := range b.words {
		var ow uint64
		if i < len(o.words) {
			ow = o.words[i]
		}
		if w&^ow != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether b and o hold the same elements.
func (b Bitset) Equal(o Bitset) bool {
	return b.SubsetOf(o) && o.SubsetOf(b)
}

// Count returns the number of elements.
func (b Bitset) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether b has no elements.
func (b Bitset) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// ForEach calls fn for every element in ascending order.
func (b Bitset) ForEach(fn func(x int)) {
	for i, w := range b.words {
		for w != 0 {
			t := bits.TrailingZeros64(w)
			fn(i*64 + t)
			w &= w - 1
		}
	}
}

// Elements returns the elements in ascending order.
func (b Bitset) Elements() []int {
	out := make([]int, 0, b.Count())
	b.ForEach(func(x int) { out = append(out, x) })
	return out
}

// Clone returns an independent copy of b.
func (b Bitset) Clone() Bitset {
	return Bitset{words: append([]uint64(nil), b.words...)}
}

// key returns a map key identifying the set's contents.
func (b Bitset) key() string {
	n := len(b.words)
	for n > 0 && b.words[n-1] == 0 {
		n--
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(strconv.FormatUint(b.words[i], 16))
	}
	return sb.String()
}

func (b Bitset) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	b.ForEach(func(x int) {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		sb.WriteString(strconv.Itoa(x))
	})
	sb.WriteByte('}')
	return sb.String()
}
