package kmall

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"example.com/kmgate/internal/kmall/kmalltest"
)

func sampleRecords() map[string][]byte {
	return map[string][]byte{
		"IIP": kmalltest.IIP(testTime, kmalltest.SampleInstallText),
		"IOP": kmalltest.IOP(testTime, "Depth settings: auto"),
		"IBE": kmalltest.IBE(testTime, 3, -1, "RX board temperature high"),
		"MRZ": kmalltest.MRZ(kmalltest.SimplePing(testTime, 1, 6)),
		"MWC": kmalltest.MWC(kmalltest.WaterColumn{
			Time:      testTime,
			PhaseFlag: 1,
			Sectors:   []float32{-1, 1},
			Beams: []kmalltest.WCBeam{
				{Angle: -10, Amp: []int8{-20, -30}, Phase8: []int8{1, 2}},
				{Angle: 10, Sector: 1, Amp: []int8{-25}, Phase8: []int8{3}},
			},
		}),
		"SPO": kmalltest.SPO(kmalltest.Fix{Time: testTime, Latitude: 59.5, Longitude: 10.25}),
		"CPO": kmalltest.CPO(kmalltest.Fix{Time: testTime, Latitude: 59.5, Longitude: 10.25}),
		"SKM": kmalltest.SKM(testTime, true, 0, kmalltest.Motion{Time: testTime, Roll: 1, Pitch: 2, Heading: 3, Heave: 0.5}),
		"SVP": kmalltest.SVP(kmalltest.Profile{
			Time: testTime, ProfileTime: testTime, Latitude: 59.5, Longitude: 10.25,
			Depth: []float32{0, 10}, SoundVelocity: []float32{1500, 1490},
		}),
		"SVT": kmalltest.SVT(testTime, 0, 1500, 1501),
		"SCL": kmalltest.SCL(testTime, 0),
		"SDE": kmalltest.SDE(testTime, 12.5, "$PSDE,12.5"),
		"SHI": kmalltest.SHI(testTime, 3.5, "H3.5"),
		"CHE": kmalltest.CHE(testTime, 7, 0.25),
		"FCF": kmalltest.FCF(testTime, "bscorr.txt", "# calibration\n"),
	}
}

func TestDecodeAllKinds(t *testing.T) {
	for name, rec := range sampleRecords() {
		t.Run(name, func(t *testing.T) {
			r := mustDecode(t, rec)
			if got := r.Kind().Tag(); got != "#"+name {
				t.Fatalf("Kind = %s, want #%s", got, name)
			}
			if hdr := r.DatagramHeader(); !hdr.Time.Equal(testTime) || hdr.Size != uint32(len(rec)) {
				t.Fatalf("header = %+v", hdr)
			}
		})
	}
}

func TestDecodeIdempotent(t *testing.T) {
	for name, rec := range sampleRecords() {
		t.Run(name, func(t *testing.T) {
			a, err := json.Marshal(mustDecode(t, rec))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			b, err := json.Marshal(mustDecode(t, rec))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if !bytes.Equal(a, b) {
				t.Fatalf("decodes differ:\n%s\n%s", a, b)
			}
		})
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode(kmalltest.Bare("#XYZ", testTime, nil), 100)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	var re *RecordError
	if !errors.As(err, &re) || re.Offset != 100 || re.Tag != "#XYZ" {
		t.Fatalf("err = %#v", err)
	}
}

func TestDecodeNotImplemented(t *testing.T) {
	for _, tag := range []string{"#IBR", "#IBS"} {
		_, err := Decode(kmalltest.Bare(tag, testTime, []byte{1, 2, 3, 4}), 0)
		if !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("%s: err = %v, want ErrNotImplemented", tag, err)
		}
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	rec := sampleRecords()["CHE"]
	if _, err := Decode(rec[:len(rec)-1], 0); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("short record: err = %v", err)
	}
	if _, err := Decode(rec[:10], 0); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("partial header: err = %v", err)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	rec := append([]byte(nil), sampleRecords()["CHE"]...)
	rec[len(rec)-1] ^= 0xFF
	_, err := Decode(rec, 0)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestDecodeTrailingContent(t *testing.T) {
	// A record whose declared size leaves bytes the layout does not use.
	rec := sampleRecords()["CHE"]
	body := append([]byte(nil), rec[HeaderSize:len(rec)-4]...)
	body = append(body, 0, 0, 0, 0)
	padded := kmalltest.Record("#CHE", 0, testTime, body)
	if _, err := Decode(padded, 0); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	rec := sampleRecords()["SHI"]
	if err := VerifyChecksum(rec, len(rec)-4, uint32(len(rec))); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if err := VerifyChecksum(rec, len(rec)-4, 1); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("mismatch: err = %v", err)
	}
	if err := VerifyChecksum(rec, len(rec)-2, uint32(len(rec))); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("missing: err = %v", err)
	}
}

func TestReadStatsRejectsSensorKinds(t *testing.T) {
	if _, err := ReadStats(KindSPO, sampleRecords()["SPO"], 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}
