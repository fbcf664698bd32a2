package bitio

import (
	"math/rand"
	"testing"
)

func TestReadWriteBits(t *testing.T) {
	bits := []bool{
		false, true, false, true, true, false, false, false,
		true, false, true, true, true, false, true, true,
	}

	w := NewWriter()
	for _, b := range bits {
		w.WriteBit(b)
	}

	r := NewReader(w.ToBytes())
	for i, want := range bits {
		got, err := r.ReadBit()
		if err != nil {
			t.Fatalf("bit %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("bit %d = %v, want %v", i, got, want)
		}
	}
}

func TestReadWriteBytes(t *testing.T) {
	bytes := []byte{48, 151, 62, 34, 2}

	w := NewWriter()
	for _, b := range bytes {
		w.WriteByte(b)
	}
	buf := w.ToBytes()
	for i, want := range bytes {
		if buf[i] != want {
			t.Errorf("buf[%d] = %v, want %v", i, buf[i], want)
		}
	}

	r := NewReader(buf)
	for i, want := range bytes {
		got, err := r.ReadByte()
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("byte %d = %v, want %v", i, got, want)
		}
	}
}

func TestReadWriteMixed(t *testing.T) {
	w := NewWriter()
	w.WriteBit(true)
	w.WriteU16(12345)
	w.WriteBit(false)
	w.WriteU32(123456789)
	w.WriteBit(true)

	r := NewReader(w.ToBytes())
	if b, _ := r.ReadBit(); b != true {
		t.Errorf("bit1 = %v, want true", b)
	}
	if v, err := r.ReadU16(); err != nil || v != 12345 {
		t.Errorf("u16 = %v, %v, want 12345", v, err)
	}
	if b, _ := r.ReadBit(); b != false {
		t.Errorf("bit2 = %v, want false", b)
	}
	if v, err := r.ReadU32(); err != nil || v != 123456789 {
		t.Errorf("u32 = %v, %v, want 123456789", v, err)
	}
	if b, _ := r.ReadBit(); b != true {
		t.Errorf("bit3 = %v, want true", b)
	}
}

func TestCounterMatchesWriter(t *testing.T) {
	w := NewWriter()

	c := w.Counter()
	if c.BitsNeeded() != 0 {
		t.Fatalf("fresh counter BitsNeeded() = %d, want 0", c.BitsNeeded())
	}
	if c.Overflowed() {
		t.Fatalf("fresh counter overflowed")
	}

	w.WriteBit(true)
	w.WriteU32(37)
	w.WriteBit(false)

	c = w.Counter()
	c.WriteBit(true)
	c.WriteU32(37)
	c.WriteBit(false)
	if c.BitsNeeded() != 34 {
		t.Errorf("BitsNeeded() = %d, want 34", c.BitsNeeded())
	}
	if c.Overflowed() {
		t.Errorf("counter overflowed unexpectedly")
	}
}

func TestVarintRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 63, -64, 1000000, -1000000, 1<<40 - 1}
	for _, v := range cases {
		w := NewWriter()
		w.WriteVarint(v)
		r := NewReader(w.ToBytes())
		got, err := r.ReadVarint()
		if err != nil {
			t.Fatalf("ReadVarint(%d): unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("varint round trip = %d, want %d", got, v)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	payloads := [][]byte{nil, {}, {0x01}, []byte("the quick brown fox")}
	for _, p := range payloads {
		w := NewWriter()
		w.WriteBytes(p)
		r := NewReader(w.ToBytes())
		got, err := r.ReadBytes()
		if err != nil {
			t.Fatalf("ReadBytes: unexpected error: %v", err)
		}
		if len(got) != len(p) {
			t.Errorf("len(got) = %d, want %d", len(got), len(p))
		}
	}
}

func TestOverflowReturnsError(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.ReadU32(); err != ErrOverflow {
		t.Errorf("ReadU32 past end = %v, want ErrOverflow", err)
	}
}

func TestRandomRoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		w := NewWriter()
		n := rng.Intn(64)
		var vals []uint64
		var widths []uint8
		for j := 0; j < n; j++ {
			width := uint8(1 + rng.Intn(32))
			val := rng.Uint64() & ((1 << width) - 1)
			w.WriteBits(val, width)
			vals = append(vals, val)
			widths = append(widths, width)
		}

		r := NewReader(w.ToBytes())
		for j, want := range vals {
			got, err := r.ReadBits(widths[j])
			if err != nil {
				t.Fatalf("iteration %d value %d: unexpected error: %v", i, j, err)
			}
			if got != want {
				t.Errorf("iteration %d value %d = %d, want %d", i, j, got, want)
			}
		}
	}
}
