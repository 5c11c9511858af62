package kmall

import (
	"errors"
	"math"
	"strings"
	"testing"

	"example.com/kmgate/internal/kmall/kmalltest"
)

func TestDecodeMWC(t *testing.T) {
	w := kmalltest.WaterColumn{
		Time:      testTime,
		PingCnt:   12,
		Heave:     0.3,
		PhaseFlag: 2,
		Sectors:   []float32{-2, 0, 2},
		Beams: []kmalltest.WCBeam{
			{Angle: -30, Amp: []int8{10, 20}, Phase16: []int16{100, 200}},
			{Angle: 30, Sector: 2, Amp: []int8{30}, Phase16: []int16{-100}},
		},
	}
	r := mustDecode(t, kmalltest.MWC(w)).(*MWC)
	if r.Body.PingCnt != 12 || r.TxInfo.Heave != 0.3 {
		t.Fatalf("body = %+v, tx = %+v", r.Body, r.TxInfo)
	}
	if len(r.TxInfo.TiltAngle) != 3 || r.TxInfo.TiltAngle[2] != 2 {
		t.Fatalf("tilt = %v", r.TxInfo.TiltAngle)
	}
	b := r.Beams
	if b.MaxSamples() != 2 || b.BeamTxSectorNum[1] != 2 {
		t.Fatalf("beams = %+v", b)
	}
	amp := b.Amplitude
	if amp.Rows != 2 || amp.Cols != 2 {
		t.Fatalf("amplitude = %dx%d, want 2x2", amp.Rows, amp.Cols)
	}
	if amp.At(0, 0) != 5 || amp.At(1, 0) != 10 || amp.At(0, 1) != 15 || !math.IsNaN(amp.At(1, 1)) {
		t.Fatalf("amplitude = %v", amp.Data)
	}
	ph := b.Phase
	if !near(ph.At(0, 0), 1) || !near(ph.At(1, 0), 2) || !near(ph.At(0, 1), -1) || !math.IsNaN(ph.At(1, 1)) {
		t.Fatalf("phase = %v", ph.Data)
	}
}

func TestMWCLowResolutionPhase(t *testing.T) {
	w := kmalltest.WaterColumn{
		Time:      testTime,
		PhaseFlag: 1,
		Beams:     []kmalltest.WCBeam{{Amp: []int8{-40}, Phase8: []int8{64}}},
	}
	r := mustDecode(t, kmalltest.MWC(w)).(*MWC)
	if !near(r.Beams.Phase.At(0, 0), 90) {
		t.Fatalf("phase = %v, want 90", r.Beams.Phase.At(0, 0))
	}
	if r.Beams.Amplitude.At(0, 0) != -20 {
		t.Fatalf("amplitude = %v, want -20", r.Beams.Amplitude.At(0, 0))
	}
}

func TestMWCAmplitudeOnly(t *testing.T) {
	w := kmalltest.WaterColumn{
		Time:      testTime,
		BeamEntry: 20,
		Beams:     []kmalltest.WCBeam{{Amp: []int8{2, 4, 6}}, {Amp: []int8{8}}},
	}
	r := mustDecode(t, kmalltest.MWC(w)).(*MWC)
	if r.Beams.Phase.Data != nil {
		t.Fatalf("phase present without phase data")
	}
	if r.Beams.Amplitude.At(2, 0) != 3 || r.Beams.Amplitude.At(0, 1) != 4 {
		t.Fatalf("amplitude = %v", r.Beams.Amplitude.Data)
	}
}

func TestMWCUnknownPhaseFlag(t *testing.T) {
	w := kmalltest.WaterColumn{
		Time:      testTime,
		PhaseFlag: 3,
		Beams:     []kmalltest.WCBeam{{Amp: []int8{1, 2}}},
	}
	_, err := Decode(kmalltest.MWC(w), 0)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("err = %v, want ErrUnsupportedEncoding", err)
	}
	if !strings.Contains(err.Error(), "beam 0") {
		t.Fatalf("err = %v, want beam index", err)
	}
}

func TestReadMWCStats(t *testing.T) {
	w := kmalltest.WaterColumn{
		Time:      testTime,
		NumOfDgms: 3,
		DgmNum:    1,
		Sectors:   []float32{0, 1, 2},
		Beams:     []kmalltest.WCBeam{{Amp: []int8{1}}, {Amp: []int8{2}}},
	}
	st, err := ReadMWCStats(kmalltest.MWC(w), 0)
	if err != nil {
		t.Fatalf("ReadMWCStats: %v", err)
	}
	want := PingStats{Start: true, NumOfDgms: 3, NumTxSectors: 3, NumBeams: 2}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}
