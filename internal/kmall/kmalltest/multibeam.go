package kmalltest

import (
	"math"
	"time"
)

// Sector describes one transmit sector of a ping.
type Sector struct {
	Index       uint8
	Tilt        float32
	CentreFreq  float32
	Bandwidth   float32
	Delay       float32
	TotalLength float32
	EffLength   float32
	SourceLevel float32
	Waveform    uint8
}

// Sounding describes one detection of a ping.
type Sounding struct {
	Index           uint16
	Sector          uint8
	DetectionType   uint8
	DetectionMethod uint8
	QualityFactor   float32
	// MeanAbs is stored as written, in dB/km.
	MeanAbs       float32
	BS1, BS2      float32
	RxSensitivity float32
	SourceLevel   float32
	Calibration   float32
	TVG           float32
	BeamAngle     float32
	BeamAngleCorr float32
	TWTT          float32
	TWTTCorr      float32
	DeltaLat      float32
	DeltaLon      float32
	X, Y, Z       float32
	SIStart       uint16
	SICentre      uint16
	// Snippet samples in tenths of a dB.
	Snippet []int16
}

// Ping describes a #MRZ record.
type Ping struct {
	Version   uint8
	Time      time.Time
	NumOfDgms uint16
	DgmNum    uint16
	PingCnt   uint16

	DepthMode     uint8
	FrequencyMode float32
	TxArraySize   float32
	RxArraySize   float32
	NumTxSectors  int // overrides len(Sectors) when positive
	SectorStride  int // defaults to the sector layout size

	Heading    float32
	SoundSpeed float32
	TxDepth    float32
	Waterline  float32
	Latitude   float64
	Longitude  float64
	EllHeight  float32

	BSCorrOffset float32
	LambertsLaw  uint8

	MaxSoundings     uint16 // defaults to len(Soundings) - NumExtra
	NumExtra         uint16
	SoundingStride   int // defaults to 120
	SeabedSampleRate float32
	BSNormal         float32
	BSOblique        float32

	Sectors   []Sector
	Soundings []Sounding
}

const (
	pingInfoSize   = 144
	pingInfoV1Size = 152
	sectorSize     = 36
	sectorV1Size   = 48
	soundingSize   = 120
)

// MRZ builds a ping record.
func MRZ(p Ping) []byte {
	e := newEnc()
	numOf, num := p.NumOfDgms, p.DgmNum
	if numOf == 0 {
		numOf, num = 1, 1
	}
	e.u16(numOf)
	e.u16(num)
	writeMBody(e, p.PingCnt)

	numTx := len(p.Sectors)
	if p.NumTxSectors > 0 {
		numTx = p.NumTxSectors
	}
	layout, secLayout := pingInfoSize, sectorSize
	if p.Version >= 1 {
		layout, secLayout = pingInfoV1Size, sectorV1Size
	}
	stride := p.SectorStride
	if stride == 0 {
		stride = secLayout
	}
	start := e.size()
	e.u16(uint16(layout))
	e.u16(0)
	e.f32(10)
	e.u8(0)           // beam spacing
	e.u8(p.DepthMode) // depth mode
	e.u8(0)
	e.u8(0)
	e.u8(0) // detection mode
	e.u8(0) // pulse form
	e.u16(0)
	e.f32(p.FrequencyMode)
	for i := 0; i < 10; i++ {
		e.f32(float32(i))
	}
	e.u16(50)
	e.u16(50)
	e.u8(0x03)
	e.u8(0x01)
	e.u16(0x1121)
	e.u32(0)
	e.f32(p.TxArraySize)
	e.f32(p.RxArraySize)
	e.f32(-3)
	e.u16(0)
	e.u16(0)
	e.f32(0)
	e.u16(uint16(numTx))
	e.u16(uint16(stride))
	e.f32(p.Heading)
	e.f32(p.SoundSpeed)
	e.f32(p.TxDepth)
	e.f32(p.Waterline)
	e.f32(0)
	e.f32(0)
	e.u8(0)
	e.u8(0)
	e.u8(0)
	e.u8(0)
	e.f64(p.Latitude)
	e.f64(p.Longitude)
	e.f32(p.EllHeight)
	if p.Version >= 1 {
		e.f32(p.BSCorrOffset)
		e.u8(p.LambertsLaw)
		e.u8(0)
		e.u16(0)
	}
	e.padTo(start, layout)

	for _, s := range p.Sectors {
		at := e.size()
		e.u8(s.Index)
		e.u8(0)
		e.u8(0)
		e.u8(0)
		e.f32(s.Delay)
		e.f32(s.Tilt)
		e.f32(s.SourceLevel)
		e.f32(0)
		e.f32(s.CentreFreq)
		e.f32(s.Bandwidth)
		e.f32(s.TotalLength)
		e.u8(0)
		e.u8(s.Waveform)
		e.u16(0)
		if p.Version >= 1 {
			e.f32(200)
			e.f32(0)
			e.f32(s.EffLength)
		}
		e.padTo(at, stride)
	}

	maxS := p.MaxSoundings
	if maxS == 0 {
		maxS = uint16(len(p.Soundings)) - p.NumExtra
	}
	sstride := p.SoundingStride
	if sstride == 0 {
		sstride = soundingSize
	}
	e.u16(32)
	e.u16(maxS)
	e.u16(uint16(len(p.Soundings)) - p.NumExtra)
	e.u16(uint16(sstride))
	e.f32(1000)
	e.f32(p.SeabedSampleRate)
	e.f32(p.BSNormal)
	e.f32(p.BSOblique)
	e.u16(0)
	e.u16(p.NumExtra)
	e.u16(0)
	e.u16(4)

	for _, s := range p.Soundings {
		at := e.size()
		e.u16(s.Index)
		e.u8(s.Sector)
		e.u8(s.DetectionType)
		e.u8(s.DetectionMethod)
		e.zeros(5)
		e.u16(0)
		e.f32(0)
		e.f32(s.QualityFactor)
		e.f32(0.1)
		e.f32(0.2)
		e.f32(0)
		e.f32(0)
		e.u16(s.Index)
		e.u16(0)
		e.f32(s.BeamAngle)
		e.f32(s.MeanAbs)
		e.f32(s.BS1)
		e.f32(s.BS2)
		e.f32(s.RxSensitivity)
		e.f32(s.SourceLevel)
		e.f32(s.Calibration)
		e.f32(s.TVG)
		e.f32(s.BeamAngle)
		e.f32(s.BeamAngleCorr)
		e.f32(s.TWTT)
		e.f32(s.TWTTCorr)
		e.f32(s.DeltaLat)
		e.f32(s.DeltaLon)
		e.f32(s.Z)
		e.f32(s.Y)
		e.f32(s.X)
		e.f32(0)
		e.u16(0)
		e.u16(s.SIStart)
		e.u16(s.SICentre)
		e.u16(uint16(len(s.Snippet)))
		e.padTo(at, sstride)
	}
	for _, s := range p.Soundings {
		for _, v := range s.Snippet {
			e.i16(v)
		}
	}
	return Record("#MRZ", p.Version, p.Time, e.bytes())
}

func writeMBody(e *enc, pingCnt uint16) {
	e.u16(12)
	e.u16(pingCnt)
	e.u8(1)
	e.u8(0)
	e.u8(1)
	e.u8(0)
	e.u8(0)
	e.u8(0)
	e.u8(1)
	e.u8(0)
}

// SimplePing returns a version 1 ping with two sectors and beams soundings
// spread across them.
func SimplePing(t time.Time, cnt uint16, beams int) Ping {
	p := Ping{
		Version:          1,
		Time:             t,
		PingCnt:          cnt,
		FrequencyMode:    300000,
		TxArraySize:      1,
		RxArraySize:      1.3,
		Heading:          90 + float32(cnt),
		SoundSpeed:       1500,
		TxDepth:          2.5,
		Waterline:        -0.1,
		Latitude:         59.9 + float64(cnt)*1e-5,
		Longitude:        10.7,
		EllHeight:        40,
		BSCorrOffset:     -1.5,
		LambertsLaw:      1,
		SeabedSampleRate: 15000,
		BSNormal:         -20,
		BSOblique:        -25,
		Sectors: []Sector{
			{Index: 0, Tilt: -1, CentreFreq: 300000, Bandwidth: 5000, Delay: 0.001, TotalLength: 0.0002, EffLength: 0.0001, SourceLevel: 210},
			{Index: 1, Tilt: 1, CentreFreq: 310000, Bandwidth: 5500, Delay: 0.002, TotalLength: 0.0003, EffLength: 0.00015, SourceLevel: 211},
		},
	}
	for i := 0; i < beams; i++ {
		sector := uint8(0)
		if i >= beams/2 {
			sector = 1
		}
		angle := -60 + 120*float32(i)/float32(max(beams-1, 1))
		p.Soundings = append(p.Soundings, Sounding{
			Index:           uint16(i),
			Sector:          sector,
			DetectionMethod: 1,
			QualityFactor:   0.5,
			MeanAbs:         80,
			BS1:             -30 - float32(i),
			BS2:             -31 - float32(i),
			RxSensitivity:   -180,
			SourceLevel:     210 + float32(sector),
			Calibration:     1.5,
			TVG:             20,
			BeamAngle:       angle,
			BeamAngleCorr:   0.01,
			TWTT:            0.02 + 0.0001*float32(i),
			TWTTCorr:        0,
			DeltaLat:        float32(i) * 1e-6,
			DeltaLon:        -float32(i) * 1e-6,
			X:               float32(i) * 0.1,
			Y:               float32(math.Tan(float64(angle)*math.Pi/180)) * 15,
			Z:               15,
			SIStart:         100,
			SICentre:        2,
			Snippet:         []int16{int16(-300 - i), int16(-310 - i), int16(-320 - i)}[:1+i%3],
		})
	}
	return p
}

// WCBeam describes one water column beam.
type WCBeam struct {
	Angle   float32
	Sector  uint16
	Amp     []int8
	Phase8  []int8
	Phase16 []int16
}

// WaterColumn describes a #MWC record.
type WaterColumn struct {
	Time      time.Time
	NumOfDgms uint16
	DgmNum    uint16
	PingCnt   uint16
	Heave     float32
	PhaseFlag uint8
	// BeamEntry defaults to the 16 byte beam header.
	BeamEntry int
	Sectors   []float32 // tilt angle per sector
	Beams     []WCBeam
}

// MWC builds a water column record.
func MWC(w WaterColumn) []byte {
	e := newEnc()
	numOf, num := w.NumOfDgms, w.DgmNum
	if numOf == 0 {
		numOf, num = 1, 1
	}
	e.u16(numOf)
	e.u16(num)
	writeMBody(e, w.PingCnt)

	e.u16(12)
	e.u16(uint16(len(w.Sectors)))
	e.u16(16)
	e.i16(0)
	e.f32(w.Heave)
	for i, tilt := range w.Sectors {
		e.f32(tilt)
		e.f32(300000)
		e.f32(1)
		e.u16(uint16(i))
		e.i16(0)
	}

	entry := w.BeamEntry
	if entry == 0 {
		entry = 16
	}
	e.u16(16)
	e.u16(uint16(len(w.Beams)))
	e.u8(uint8(entry))
	e.u8(w.PhaseFlag)
	e.u8(1)
	e.i8(0)
	e.f32(30000)
	e.f32(1500)
	for _, b := range w.Beams {
		at := e.size()
		e.f32(b.Angle)
		e.u16(0)
		e.u16(uint16(len(b.Amp) / 2))
		e.u16(b.Sector)
		e.u16(uint16(len(b.Amp)))
		e.f32(float32(len(b.Amp)) / 2)
		e.padTo(at, entry)
		for _, a := range b.Amp {
			e.i8(a)
		}
		for _, ph := range b.Phase8 {
			e.i8(ph)
		}
		for _, ph := range b.Phase16 {
			e.i16(ph)
		}
	}
	return Record("#MWC", 0, w.Time, e.bytes())
}
