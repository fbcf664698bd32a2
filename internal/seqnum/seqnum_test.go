package seqnum

import (
	"math/rand"
	"testing"

	"github.com/duskwire/netcode/internal/bitio"
)

func TestDiffAndAddRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		n := Num(rng.Uint32())
		delta := int16(rng.Intn(65536) - 32768)
		advanced := n.Add(delta)
		if got := advanced.Diff(n); got != delta {
			t.Fatalf("n=%d delta=%d: advanced.Diff(n) = %d, want %d", n, delta, got, delta)
		}
	}
}

func TestGreaterThanWraparound(t *testing.T) {
	cases := []struct {
		a, b Num
		want bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, Max, true},   // 0 wraps just after Max
		{Max, 0, false},
		{100, 50, true},
		{50, 100, false},
	}
	for _, c := range cases {
		if got := c.a.GreaterThan(c.b); got != c.want {
			t.Errorf("Num(%d).GreaterThan(%d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIncrWraps(t *testing.T) {
	if got := Max.Incr(); got != Zero {
		t.Errorf("Max.Incr() = %d, want 0", got)
	}
}

func TestSerDeRoundTrip(t *testing.T) {
	for _, v := range []Num{0, 1, 12345, Max} {
		w := bitio.NewWriter()
		v.Ser(w)
		r := bitio.NewReader(w.ToBytes())
		got, err := De(r)
		if err != nil {
			t.Fatalf("De: unexpected error: %v", err)
		}
		if got != v {
			t.Errorf("round trip = %d, want %d", got, v)
		}
	}
}

// TestGreaterThanHalfRangeBoundary pins down the exact wraparound edge at a
// distance of 32769, one past half the range: GreaterThan must agree with
// Diff's sign (Diff reports -32767, so lhs must not be ordered after rhs).
func TestGreaterThanHalfRangeBoundary(t *testing.T) {
	lhs := Num(32769)
	rhs := Num(0)
	if diff := lhs.Diff(rhs); diff != -32767 {
		t.Fatalf("Num(32769).Diff(0) = %d, want -32767", diff)
	}
	if lhs.GreaterThan(rhs) {
		t.Errorf("Num(32769).GreaterThan(0) = true, want false (Diff says lhs is behind rhs)")
	}
	if !rhs.GreaterThan(lhs) {
		t.Errorf("Num(0).GreaterThan(32769) = false, want true")
	}
}

// TestOrderingTransitivityProperty exercises the half-range comparison
// across a sliding window, the shape of comparison actually used by the ack
// engine and channel receivers.
func TestOrderingTransitivityProperty(t *testing.T) {
	base := Num(60000) // deliberately near the wraparound boundary
	for i := int16(0); i < 100; i++ {
		for j := int16(0); j < 100; j++ {
			a := base.Add(i)
			b := base.Add(j)
			if i == j {
				continue
			}
			want := i > j
			if got := a.GreaterThan(b); got != want {
				t.Errorf("base+%d GreaterThan base+%d = %v, want %v", i, j, got, want)
			}
		}
	}
}
