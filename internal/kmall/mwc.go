package kmall

// MWCTxInfo combines the water column transmit info and its sectors.
type MWCTxInfo struct {
	Size                uint16    `json:"size"`
	NumTxSectors        uint16    `json:"numTxSectors"`
	NumBytesPerTxSector uint16    `json:"numBytesPerTxSector"`
	Heave               float32   `json:"heave"`
	TiltAngle           []float32 `json:"tiltAngle"`
	CentreFrequency     []float32 `json:"centreFrequency"`
	TxBeamWidthAlong    []float32 `json:"txBeamWidthAlong"`
	TxSectorNum         []uint16  `json:"txSectorNum"`
}

const (
	mwcTxInfoSize = 12
	mwcSectorSize = 16
)

func (c *cursor) mwcTxInfo() MWCTxInfo {
	start := c.pos()
	if !c.need(mwcTxInfoSize, "water column tx info") {
		return MWCTxInfo{}
	}
	t := MWCTxInfo{Size: c.u16(), NumTxSectors: c.u16(), NumBytesPerTxSector: c.u16()}
	c.i16()
	t.Heave = c.f32()
	c.endSelfSized(start, int(t.Size), mwcTxInfoSize, "water column tx info")

	n, stride := int(t.NumTxSectors), int(t.NumBytesPerTxSector)
	base := c.pos()
	if !c.repeated(n, stride, mwcSectorSize, "water column tx sectors") {
		return t
	}
	for i := 0; i < n; i++ {
		c.seek(base+i*stride, "water column tx sector")
		t.TiltAngle = append(t.TiltAngle, c.f32())
		t.CentreFrequency = append(t.CentreFrequency, c.f32())
		t.TxBeamWidthAlong = append(t.TxBeamWidthAlong, c.f32())
		t.TxSectorNum = append(t.TxSectorNum, c.u16())
		c.i16()
	}
	c.seek(base+n*stride, "water column tx sectors")
	return t
}

type MWCRxInfo struct {
	Size                 uint16  `json:"size"`
	NumBeams             uint16  `json:"numBeams"`
	NumBytesPerBeamEntry uint8   `json:"numBytesPerBeamEntry"`
	PhaseFlag            uint8   `json:"phaseFlag"`
	TVGfunctionApplied   uint8   `json:"tvgFunctionApplied"`
	TVGoffset            int8    `json:"tvgOffset"`
	SampleFreq           float32 `json:"sampleFreq"`
	SoundVelocity        float32 `json:"soundVelocity"`
}

const (
	mwcRxInfoSize = 16
	mwcBeamSize   = 16
)

func (c *cursor) mwcRxInfo() MWCRxInfo {
	start := c.pos()
	if !c.need(mwcRxInfoSize, "water column rx info") {
		return MWCRxInfo{}
	}
	r := MWCRxInfo{
		Size:                 c.u16(),
		NumBeams:             c.u16(),
		NumBytesPerBeamEntry: c.u8(),
		PhaseFlag:            c.u8(),
		TVGfunctionApplied:   c.u8(),
		TVGoffset:            c.i8(),
		SampleFreq:           c.f32(),
		SoundVelocity:        c.f32(),
	}
	c.endSelfSized(start, int(r.Size), mwcRxInfoSize, "water column rx info")
	return r
}

// Phase sample scales to degrees.
const (
	phaseLowResDeg  = 180.0 / 128.0
	phaseHighResDeg = 0.01
)

// MWCBeams holds the per beam headers and the sample grids of a water
// column record. Grids have one row per sample and one column per beam.
type MWCBeams struct {
	BeamPointAngReVertical []float32 `json:"beamPointAngReVertical"`
	StartRangeSampleNum    []uint16  `json:"startRangeSampleNum"`
	DetectedRangeInSamples []uint16  `json:"detectedRangeInSamples"`
	BeamTxSectorNum        []uint16  `json:"beamTxSectorNum"`
	NumSampleData          []uint16  `json:"numSampleData"`
	DetectedRangeHighRes   []float32 `json:"detectedRangeInSamplesHighResolution"`
	// Amplitude is in dB.
	Amplitude Grid `json:"amplitude"`
	// Phase is in degrees; it is empty when the record has no phase data.
	Phase Grid `json:"phase"`
}

// MWC is a multibeam water column record.
type MWC struct {
	Header    Header     `json:"header"`
	Partition MPartition `json:"partition"`
	Body      MBody      `json:"body"`
	TxInfo    MWCTxInfo  `json:"txInfo"`
	RxInfo    MWCRxInfo  `json:"rxInfo"`
	Beams     MWCBeams   `json:"beams"`
}

func (r *MWC) Kind() Kind             { return KindMWC }
func (r *MWC) DatagramHeader() Header { return r.Header }

func decodeMWC(data []byte, offset int64) (*MWC, error) {
	c := newCursor(data, offset, KindMWC.Tag())
	r := &MWC{Header: c.header()}
	r.Partition = c.mpartition()
	r.Body = c.mbody()
	r.TxInfo = c.mwcTxInfo()
	r.RxInfo = c.mwcRxInfo()
	r.Beams = c.mwcBeams(r.RxInfo)
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

func (c *cursor) mwcBeams(rx MWCRxInfo) MWCBeams {
	var b MWCBeams
	if c.err != nil {
		return b
	}
	n := int(rx.NumBeams)
	entry := int(rx.NumBytesPerBeamEntry)
	if n > 0 && entry < mwcBeamSize {
		c.corrupt(c.pos(), "beam entry size %d below layout size %d", entry, mwcBeamSize)
		return b
	}
	amps := make([][]int8, 0, n)
	phases := make([][]float64, 0, n)
	widest := 0
	for i := 0; i < n; i++ {
		start := c.pos()
		if !c.need(entry, "beam header") {
			return b
		}
		b.BeamPointAngReVertical = append(b.BeamPointAngReVertical, c.f32())
		b.StartRangeSampleNum = append(b.StartRangeSampleNum, c.u16())
		b.DetectedRangeInSamples = append(b.DetectedRangeInSamples, c.u16())
		b.BeamTxSectorNum = append(b.BeamTxSectorNum, c.u16())
		ns := c.u16()
		b.NumSampleData = append(b.NumSampleData, ns)
		b.DetectedRangeHighRes = append(b.DetectedRangeHighRes, c.f32())
		c.seek(start+entry, "beam header")

		count := int(ns)
		if count > widest {
			widest = count
		}
		var width int
		switch rx.PhaseFlag {
		case 0:
			width = 1
		case 1:
			width = 2
		case 2:
			width = 3
		default:
			c.unsupported(start, "beam %d: phase flag %d", i, rx.PhaseFlag)
			return b
		}
		if !c.need(count*width, "beam samples") {
			return b
		}
		amp := make([]int8, count)
		for j := range amp {
			amp[j] = c.i8()
		}
		amps = append(amps, amp)
		switch rx.PhaseFlag {
		case 1:
			ph := make([]float64, count)
			for j := range ph {
				ph[j] = float64(c.i8()) * phaseLowResDeg
			}
			phases = append(phases, ph)
		case 2:
			ph := make([]float64, count)
			for j := range ph {
				ph[j] = float64(c.i16()) * phaseHighResDeg
			}
			phases = append(phases, ph)
		}
	}
	if c.err != nil {
		return b
	}
	b.Amplitude = NewGrid(widest, n)
	for beam, amp := range amps {
		for s, v := range amp {
			b.Amplitude.Set(s, beam, float64(v)*0.5)
		}
	}
	if len(phases) > 0 {
		b.Phase = NewGrid(widest, n)
		for beam, ph := range phases {
			for s, v := range ph {
				b.Phase.Set(s, beam, v)
			}
		}
	}
	return b
}

// MaxSamples returns the longest beam of the record.
func (b MWCBeams) MaxSamples() int {
	m := 0
	for _, n := range b.NumSampleData {
		if int(n) > m {
			m = int(n)
		}
	}
	return m
}

// ReadMWCStats reads partition and sizing fields of a water column record
// without decoding beams.
func ReadMWCStats(data []byte, offset int64) (PingStats, error) {
	c := newCursor(data, offset, KindMWC.Tag())
	c.header()
	p := c.mpartition()
	c.skipSelfSized16("multibeam body")
	txStart := c.pos()
	numTx, stride := 0, 0
	if c.need(6, "water column tx info") {
		size := int(c.u16())
		numTx = int(c.u16())
		stride = int(c.u16())
		c.endSelfSized(txStart, size, mwcTxInfoSize, "water column tx info")
	}
	c.skip(numTx*stride, "water column tx sectors")
	beams := 0
	if c.need(4, "water column rx info") {
		c.u16()
		beams = int(c.u16())
	}
	if c.err != nil {
		return PingStats{}, c.err
	}
	return PingStats{Start: p.DgmNum == 1, NumOfDgms: int(p.NumOfDgms), NumTxSectors: numTx, NumBeams: beams}, nil
}
