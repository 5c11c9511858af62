package kmall

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"example.com/kmgate/internal/kmall/kmalltest"
)

var testTime = time.Date(2023, 11, 14, 22, 13, 20, 500_000_000, time.UTC)

func mustDecode(t *testing.T, rec []byte) Record {
	t.Helper()
	r, err := Decode(rec, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return r
}

func TestParseHeader(t *testing.T) {
	rec := kmalltest.Bare("#XYZ", time.Unix(1700000000, 500_000_000), nil)
	hdr, err := ParseHeader(rec)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.Tag != "#XYZ" {
		t.Fatalf("Tag = %q", hdr.Tag)
	}
	if hdr.Size != uint32(len(rec)) || hdr.Size != MinRecordSize {
		t.Fatalf("Size = %d, want %d", hdr.Size, MinRecordSize)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 500_000_000, time.UTC)
	if !hdr.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", hdr.Time, want)
	}
	if hdr.Time.Location() != time.UTC {
		t.Fatalf("Time location = %v, want UTC", hdr.Time.Location())
	}
	if hdr.TimeSec != 1700000000 || hdr.TimeNanosec != 500_000_000 {
		t.Fatalf("raw time = %d/%d", hdr.TimeSec, hdr.TimeNanosec)
	}
}

func TestParseHeaderShort(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestFlags(t *testing.T) {
	got := Flags(0b1010_0101, 8)
	want := []bool{true, false, true, false, false, true, false, true}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bit %d = %v, want %v", i, got[i], want[i])
		}
	}
	if n := len(Flags(0xFFFF, 40)); n != 16 {
		t.Fatalf("clamped len = %d, want 16", n)
	}
	if n := len(Flags(0xFFFF, -1)); n != 0 {
		t.Fatalf("negative len = %d, want 0", n)
	}
}

func TestNibble(t *testing.T) {
	const v = 0x4321
	for i, want := range []uint8{1, 2, 3, 4} {
		if got := Nibble(v, i); got != want {
			t.Fatalf("Nibble(%#x, %d) = %d, want %d", v, i, got, want)
		}
	}
}

func TestFrequencyMode(t *testing.T) {
	tests := []struct {
		in   float32
		want float64
	}{
		{0, 70000},
		{1, 75000},
		{2, 85000},
		{3, 50000},
		{4, 40000},
		{5, NullFloat},
		{99, NullFloat},
		{100, 100},
		{300000, 300000},
	}
	for _, tc := range tests {
		if got := FrequencyMode(tc.in); got != tc.want {
			t.Fatalf("FrequencyMode(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRuntimeFilters(t *testing.T) {
	f2 := decodeRuntimeFilter2(0x2130)
	if f2.RangeGate != "small" || f2.SpikeFilter != "strong" || f2.PenetrationFilter != "weak" || f2.PhaseRamp != "long" {
		t.Fatalf("filter2 = %+v", f2)
	}
	f1 := decodeRuntimeFilter1(0x11)
	if !f1.Slope || f1.Aeration || !f1.SpecialAmplitudeDetect {
		t.Fatalf("filter1 = %+v", f1)
	}
	m := decodeModeStabilisation(0x20)
	if m.SwathAlongPosition != "dynamic" || m.Pitch {
		t.Fatalf("mode = %+v", m)
	}
}

func TestKindOf(t *testing.T) {
	for _, k := range Kinds() {
		if got := KindOf(k.Tag()); got != k {
			t.Fatalf("KindOf(%q) = %v, want %v", k.Tag(), got, k)
		}
	}
	if KindOf("#XYZ") != KindUnknown {
		t.Fatalf("unexpected kind for #XYZ")
	}
}

func TestGridJSON(t *testing.T) {
	g := NewGrid(2, 2)
	g.Set(0, 0, 1.5)
	g.Set(1, 1, -2)
	b, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	want := `{"rows":2,"cols":2,"data":[[1.5,null],[null,-2]]}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
	if !math.IsNaN(g.At(0, 1)) {
		t.Fatalf("unset cell = %v, want NaN", g.At(0, 1))
	}
}
