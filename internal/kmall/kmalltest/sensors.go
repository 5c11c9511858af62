package kmalltest

import (
	"fmt"
	"math"
	"time"
)

func sinfo(e *enc, system, status uint16) {
	e.u16(8)
	e.u16(system)
	e.u16(status)
	e.u16(0)
}

// Fix describes a position record.
type Fix struct {
	Time      time.Time
	Status    uint16
	Latitude  float64
	Longitude float64
	EllHeight float32
	// Sentence defaults to a GGA built from Latitude and Longitude.
	Sentence string
}

func positionBody(f Fix) []byte {
	e := newEnc()
	sinfo(e, 0, f.Status)
	e.u32(uint32(f.Time.Unix()))
	e.u32(uint32(f.Time.Nanosecond()))
	e.f32(1)
	e.f64(f.Latitude)
	e.f64(f.Longitude)
	e.f32(2.5)
	e.f32(45)
	e.f32(f.EllHeight)
	s := f.Sentence
	if s == "" {
		s = GGA(f.Time, f.Latitude, f.Longitude)
	}
	e.text(s)
	return e.bytes()
}

// SPO builds a sensor position record.
func SPO(f Fix) []byte { return Record("#SPO", 0, f.Time, positionBody(f)) }

// CPO builds a compatibility position record.
func CPO(f Fix) []byte { return Record("#CPO", 0, f.Time, positionBody(f)) }

// GGA formats a position fix sentence. Out of range positions produce a
// fix at the origin.
func GGA(t time.Time, lat, lon float64) string {
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		lat, lon = 0, 0
	}
	ns, ew := "N", "E"
	if lat < 0 {
		ns, lat = "S", -lat
	}
	if lon < 0 {
		ew, lon = "W", -lon
	}
	latDeg := math.Floor(lat)
	lonDeg := math.Floor(lon)
	return fmt.Sprintf("$GPGGA,%02d%02d%05.2f,%02d%08.5f,%s,%03d%08.5f,%s,4,12,0.7,42.10,M,39.00,M,1.0,0017*5A\r\n",
		t.Hour(), t.Minute(), float64(t.Second())+float64(t.Nanosecond())/1e9,
		int(latDeg), (lat-latDeg)*60, ns, int(lonDeg), (lon-lonDeg)*60, ew)
}

// ZDA formats a date and time sentence.
func ZDA(t time.Time) string {
	return fmt.Sprintf("$GPZDA,%02d%02d%05.2f,%02d,%02d,%04d,00,00*4B\r\n",
		t.Hour(), t.Minute(), float64(t.Second())+float64(t.Nanosecond())/1e9,
		t.Day(), int(t.Month()), t.Year())
}

// Motion is one KM binary sample.
type Motion struct {
	Time                        time.Time
	Latitude, Longitude         float64
	EllHeight                   float32
	Roll, Pitch, Heading, Heave float32
	// DelayedHeave is written only when the record carries delayed heave.
	DelayedHeave float32
}

const kmBinarySize = 120

// SKM builds an attitude record. sampleSize 0 selects the packed layout.
func SKM(t time.Time, delayed bool, sampleSize int, samples ...Motion) []byte {
	layout := kmBinarySize
	content := uint16(0x1F)
	if delayed {
		layout += 12
		content |= 0x60
	}
	if sampleSize == 0 {
		sampleSize = layout
	}
	e := newEnc()
	e.u16(12)
	e.u8(1)
	e.u8(1)
	e.u16(1)
	e.u16(uint16(len(samples)))
	e.u16(uint16(sampleSize))
	e.u16(content)
	for _, m := range samples {
		at := e.size()
		e.text("#KMB")
		e.u16(uint16(layout))
		e.u16(1)
		e.u32(uint32(m.Time.Unix()))
		e.u32(uint32(m.Time.Nanosecond()))
		e.u32(0)
		e.f64(m.Latitude)
		e.f64(m.Longitude)
		e.f32(m.EllHeight)
		e.f32(m.Roll)
		e.f32(m.Pitch)
		e.f32(m.Heading)
		e.f32(m.Heave)
		for i := 0; i < 3+3+7+3; i++ {
			e.f32(0)
		}
		if delayed {
			dt := m.Time.Add(-time.Second)
			e.u32(uint32(dt.Unix()))
			e.u32(uint32(dt.Nanosecond()))
			e.f32(m.DelayedHeave)
		}
		e.padTo(at, sampleSize)
	}
	return Record("#SKM", 1, t, e.bytes())
}

// Profile describes a sound velocity profile record.
type Profile struct {
	Time          time.Time
	ProfileTime   time.Time
	Format        string
	Latitude      float64
	Longitude     float64
	Depth         []float32
	SoundVelocity []float32
}

// SVP builds a sound velocity profile record.
func SVP(p Profile) []byte {
	format := p.Format
	if format == "" {
		format = "S00"
	}
	e := newEnc()
	e.u16(28)
	e.u16(uint16(len(p.Depth)))
	e.text(fixedTag(format))
	e.u32(uint32(p.ProfileTime.Unix()))
	e.f64(p.Latitude)
	e.f64(p.Longitude)
	for i, d := range p.Depth {
		e.f32(d)
		e.f32(p.SoundVelocity[i])
		e.u32(0)
		e.f32(4)
		e.f32(35)
	}
	return Record("#SVP", 1, p.Time, e.bytes())
}

// SVT builds a sound velocity at transducer record with one sample per
// value.
func SVT(t time.Time, stride int, velocities ...float32) []byte {
	if stride == 0 {
		stride = 24
	}
	e := newEnc()
	e.u16(20)
	e.u16(1)
	e.u16(3)
	e.u16(uint16(len(velocities)))
	e.u16(uint16(stride))
	e.u16(0x3)
	e.f32(1)
	e.f32(0)
	for i, v := range velocities {
		at := e.size()
		st := t.Add(time.Duration(i) * time.Second)
		e.u32(uint32(st.Unix()))
		e.u32(uint32(st.Nanosecond()))
		e.f32(v)
		e.f32(4.5)
		e.f32(0)
		e.f32(0)
		e.padTo(at, stride)
	}
	return Record("#SVT", 0, t, e.bytes())
}

// SCL builds a clock record carrying a ZDA sentence for t.
func SCL(t time.Time, system uint16) []byte {
	e := newEnc()
	sinfo(e, system, 1)
	e.f32(0.5)
	e.u32(12)
	e.text(ZDA(t))
	return Record("#SCL", 0, t, e.bytes())
}

// SDE builds a depth sensor record.
func SDE(t time.Time, depth float32, raw string) []byte {
	e := newEnc()
	sinfo(e, 0, 1)
	e.f32(depth)
	e.f32(depth + 0.1)
	e.f32(0)
	e.f32(1)
	e.f64(59.9)
	e.f64(10.7)
	e.text(raw)
	return Record("#SDE", 0, t, e.bytes())
}

// SHI builds a height sensor record.
func SHI(t time.Time, height float32, raw string) []byte {
	e := newEnc()
	sinfo(e, 0, 1)
	e.u16(2)
	e.f32(height)
	e.text(raw)
	return Record("#SHI", 0, t, e.bytes())
}

// CHE builds a compatibility heave record.
func CHE(t time.Time, pingCnt uint16, heave float32) []byte {
	e := newEnc()
	writeMBody(e, pingCnt)
	e.f32(heave)
	return Record("#CHE", 0, t, e.bytes())
}

// FCF builds a backscatter calibration file record.
func FCF(t time.Time, name, content string) []byte {
	e := newEnc()
	e.u16(1)
	e.u16(1)
	e.u16(72)
	e.i8(0)
	e.u8(0)
	e.u32(uint32(len(content)))
	fn := make([]byte, 64)
	copy(fn, name)
	e.raw(fn)
	e.text(content)
	return Record("#FCF", 0, t, e.bytes())
}
