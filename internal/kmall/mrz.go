package kmall

var sectorWaveforms = map[uint8]string{
	0: "CW",
	1: "FM Up",
	2: "FM Down",
}

var (
	detectionTypes = map[uint8]string{
		0: "normal",
		1: "extra detection",
		2: "rejected detection",
	}
	detectionMethods = map[uint8]string{
		0: "no valid detection",
		1: "amplitude detection",
		2: "phase detection",
	}
)

// TxSectorInfo holds one entry per transmit sector. The V1 slices are nil
// for version 0 records.
type TxSectorInfo struct {
	SectorIndex           []uint8   `json:"sectorIndex"`
	ArrayIndex            []uint8   `json:"arrayIndex"`
	SubArray              []uint8   `json:"subArray"`
	Delay                 []float32 `json:"delay"`
	TiltAngle             []float32 `json:"tiltAngle"`
	NominalSourceLevel    []float32 `json:"nominalSourceLevel"`
	FocusRange            []float32 `json:"focusRange"`
	CentreFrequency       []float32 `json:"centreFrequency"`
	SignalBandwidth       []float32 `json:"signalBandwidth"`
	TotalSignalLength     []float32 `json:"totalSignalLength"`
	PulseShading          []uint8   `json:"pulseShading"`
	Waveform              []string  `json:"waveform"`
	HighVoltageLevel      []float32 `json:"highVoltageLevel,omitempty"`
	SectorTrackingCorr    []float32 `json:"sectorTrackingCorr,omitempty"`
	EffectiveSignalLength []float32 `json:"effectiveSignalLength,omitempty"`
}

const (
	txSectorSize   = 36
	txSectorV1Size = 48
)

// repeated checks that count blocks of stride bytes fit before the checksum
// and that each block can hold layout bytes.
func (c *cursor) repeated(count, stride, layout int, what string) bool {
	if c.err != nil {
		return false
	}
	if count == 0 {
		return true
	}
	if stride < layout {
		c.corrupt(c.pos(), "%s stride %d below layout size %d", what, stride, layout)
		return false
	}
	return c.need(count*stride, what)
}

func (c *cursor) txSectors(version uint8, count, stride int) TxSectorInfo {
	layout := txSectorSize
	if version >= 1 {
		layout = txSectorV1Size
	}
	var t TxSectorInfo
	base := c.pos()
	if !c.repeated(count, stride, layout, "tx sectors") {
		return t
	}
	for i := 0; i < count; i++ {
		start := base + i*stride
		c.seek(start, "tx sector")
		t.SectorIndex = append(t.SectorIndex, c.u8())
		t.ArrayIndex = append(t.ArrayIndex, c.u8())
		t.SubArray = append(t.SubArray, c.u8())
		c.u8()
		t.Delay = append(t.Delay, c.f32())
		t.TiltAngle = append(t.TiltAngle, c.f32())
		t.NominalSourceLevel = append(t.NominalSourceLevel, c.f32())
		t.FocusRange = append(t.FocusRange, c.f32())
		t.CentreFrequency = append(t.CentreFrequency, c.f32())
		t.SignalBandwidth = append(t.SignalBandwidth, c.f32())
		t.TotalSignalLength = append(t.TotalSignalLength, c.f32())
		t.PulseShading = append(t.PulseShading, c.u8())
		t.Waveform = append(t.Waveform, lookup(c, sectorWaveforms, c.u8(), start+33, "sector waveform"))
		c.u16()
		if version >= 1 {
			t.HighVoltageLevel = append(t.HighVoltageLevel, c.f32())
			t.SectorTrackingCorr = append(t.SectorTrackingCorr, c.f32())
			t.EffectiveSignalLength = append(t.EffectiveSignalLength, c.f32())
		}
	}
	c.seek(base+count*stride, "tx sectors")
	return t
}

type MRZRxInfo struct {
	Size                     uint16  `json:"size"`
	NumSoundingsMaxMain      uint16  `json:"numSoundingsMaxMain"`
	NumSoundingsValidMain    uint16  `json:"numSoundingsValidMain"`
	NumBytesPerSounding      uint16  `json:"numBytesPerSounding"`
	WCSampleRate             float32 `json:"wcSampleRate"`
	SeabedImageSampleRate    float32 `json:"seabedImageSampleRate"`
	BSnormal                 float32 `json:"bsNormal"`
	BSoblique                float32 `json:"bsOblique"`
	ExtraDetectionAlarmFlag  uint16  `json:"extraDetectionAlarmFlag"`
	NumExtraDetections       uint16  `json:"numExtraDetections"`
	NumExtraDetectionClasses uint16  `json:"numExtraDetectionClasses"`
	NumBytesPerClass         uint16  `json:"numBytesPerClass"`
}

const mrzRxInfoSize = 32

func (c *cursor) mrzRxInfo() MRZRxInfo {
	start := c.pos()
	if !c.need(mrzRxInfoSize, "rx info") {
		return MRZRxInfo{}
	}
	r := MRZRxInfo{
		Size:                     c.u16(),
		NumSoundingsMaxMain:      c.u16(),
		NumSoundingsValidMain:    c.u16(),
		NumBytesPerSounding:      c.u16(),
		WCSampleRate:             c.f32(),
		SeabedImageSampleRate:    c.f32(),
		BSnormal:                 c.f32(),
		BSoblique:                c.f32(),
		ExtraDetectionAlarmFlag:  c.u16(),
		NumExtraDetections:       c.u16(),
		NumExtraDetectionClasses: c.u16(),
		NumBytesPerClass:         c.u16(),
	}
	c.endSelfSized(start, int(r.Size), mrzRxInfoSize, "rx info")
	return r
}

// NumSoundings is the number of sounding blocks in the record.
func (r MRZRxInfo) NumSoundings() int {
	return int(r.NumSoundingsMaxMain) + int(r.NumExtraDetections)
}

type ExtraDetClassInfo struct {
	NumExtraDetInClass []uint16 `json:"numExtraDetInClass"`
	AlarmFlag          []uint8  `json:"alarmFlag"`
}

const extraDetClassSize = 4

func (c *cursor) extraDetClasses(count, stride int) ExtraDetClassInfo {
	var e ExtraDetClassInfo
	base := c.pos()
	if !c.repeated(count, stride, extraDetClassSize, "extra detection classes") {
		return e
	}
	for i := 0; i < count; i++ {
		c.seek(base+i*stride, "extra detection class")
		e.NumExtraDetInClass = append(e.NumExtraDetInClass, c.u16())
		c.u8()
		e.AlarmFlag = append(e.AlarmFlag, c.u8())
	}
	c.seek(base+count*stride, "extra detection classes")
	return e
}

// Each sounding block fans out into the following parallel arrays. Every
// array owns its own copy of Index and SectorIndex.

type DetectionInfo struct {
	Index                   []uint16  `json:"index"`
	SectorIndex             []uint8   `json:"sectorIndex"`
	DetectionType           []string  `json:"detectionType"`
	DetectionMethod         []string  `json:"detectionMethod"`
	RejectionInfo1          []uint8   `json:"rejectionInfo1"`
	RejectionInfo2          []uint8   `json:"rejectionInfo2"`
	PostProcessingInfo      []uint8   `json:"postProcessingInfo"`
	DetectionClass          []uint8   `json:"detectionClass"`
	DetectionConfidence     []uint8   `json:"detectionConfidence"`
	RangeFactor             []float32 `json:"rangeFactor"`
	QualityFactor           []float32 `json:"qualityFactor"`
	DetectionUncertaintyVer []float32 `json:"detectionUncertaintyVer"`
	DetectionUncertaintyHor []float32 `json:"detectionUncertaintyHor"`
	DetectionWindowLength   []float32 `json:"detectionWindowLength"`
	EchoLength              []float32 `json:"echoLength"`
}

type WaterColumnParams struct {
	Index          []uint16  `json:"index"`
	SectorIndex    []uint8   `json:"sectorIndex"`
	WCBeamNumber   []uint16  `json:"wcBeamNumber"`
	WCRangeSamples []uint16  `json:"wcRangeSamples"`
	WCAcrossAngle  []float32 `json:"wcAcrossAngle"`
}

type Reflectivity struct {
	Index                      []uint16  `json:"index"`
	SectorIndex                []uint8   `json:"sectorIndex"`
	MeanAbsCoeff               []float64 `json:"meanAbsCoeff"`
	Reflectivity1              []float32 `json:"reflectivity1"`
	Reflectivity2              []float32 `json:"reflectivity2"`
	ReceiverSensitivityApplied []float32 `json:"receiverSensitivityApplied"`
	SourceLevelApplied         []float32 `json:"sourceLevelApplied"`
	BSCalibration              []float32 `json:"bsCalibration"`
	TVG                        []float32 `json:"tvg"`
}

type RangeAngle struct {
	Index                      []uint16  `json:"index"`
	SectorIndex                []uint8   `json:"sectorIndex"`
	BeamAngleReRx              []float32 `json:"beamAngleReRx"`
	BeamAngleCorrection        []float32 `json:"beamAngleCorrection"`
	TwoWayTravelTime           []float32 `json:"twoWayTravelTime"`
	TwoWayTravelTimeCorrection []float32 `json:"twoWayTravelTimeCorrection"`
}

type GeoReferencedDepths struct {
	Index             []uint16  `json:"index"`
	SectorIndex       []uint8   `json:"sectorIndex"`
	DeltaLatitude     []float32 `json:"deltaLatitude"`
	DeltaLongitude    []float32 `json:"deltaLongitude"`
	Z                 []float32 `json:"z"`
	Y                 []float32 `json:"y"`
	X                 []float32 `json:"x"`
	BeamIncAngleAdj   []float32 `json:"beamIncAngleAdj"`
	RealTimeCleanInfo []uint16  `json:"realTimeCleanInfo"`
}

type SeabedImage struct {
	Index          []uint16 `json:"index"`
	SectorIndex    []uint8  `json:"sectorIndex"`
	SIstartRange   []uint16 `json:"siStartRange"`
	SIcentreSample []uint16 `json:"siCentreSample"`
	SInumSamples   []uint16 `json:"siNumSamples"`
	// Snippets has one row per sounding index and one column per sample,
	// in dB.
	Snippets Grid `json:"snippets"`
}

const soundingSize = 120

// MRZ is a multibeam raw range and depth record.
type MRZ struct {
	Header              Header              `json:"header"`
	Partition           MPartition          `json:"partition"`
	Body                MBody               `json:"body"`
	PingInfo            PingInfo            `json:"pingInfo"`
	TxSectors           TxSectorInfo        `json:"txSectors"`
	RxInfo              MRZRxInfo           `json:"rxInfo"`
	ExtraDetClasses     ExtraDetClassInfo   `json:"extraDetClasses"`
	DetectionInfo       DetectionInfo       `json:"detectionInfo"`
	WaterColumnParams   WaterColumnParams   `json:"waterColumnParams"`
	Reflectivity        Reflectivity        `json:"reflectivity"`
	RangeAngle          RangeAngle          `json:"rangeAngle"`
	GeoReferencedDepths GeoReferencedDepths `json:"geoReferencedDepths"`
	SeabedImage         SeabedImage         `json:"seabedImage"`
}

func (r *MRZ) Kind() Kind             { return KindMRZ }
func (r *MRZ) DatagramHeader() Header { return r.Header }

func decodeMRZ(data []byte, offset int64) (*MRZ, error) {
	c := newCursor(data, offset, KindMRZ.Tag())
	r := &MRZ{Header: c.header()}
	r.Partition = c.mpartition()
	r.Body = c.mbody()
	r.PingInfo = c.pingInfo(r.Header.Version)
	r.TxSectors = c.txSectors(r.Header.Version, int(r.PingInfo.NumTxSectors), int(r.PingInfo.NumBytesPerTxSector))
	r.RxInfo = c.mrzRxInfo()
	r.ExtraDetClasses = c.extraDetClasses(int(r.RxInfo.NumExtraDetectionClasses), int(r.RxInfo.NumBytesPerClass))
	c.soundings(r)
	c.snippets(r)
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

func (c *cursor) soundings(r *MRZ) {
	n := r.RxInfo.NumSoundings()
	stride := int(r.RxInfo.NumBytesPerSounding)
	base := c.pos()
	if !c.repeated(n, stride, soundingSize, "soundings") {
		return
	}
	d := &r.DetectionInfo
	w := &r.WaterColumnParams
	refl := &r.Reflectivity
	ra := &r.RangeAngle
	g := &r.GeoReferencedDepths
	si := &r.SeabedImage
	for i := 0; i < n; i++ {
		start := base + i*stride
		c.seek(start, "sounding")
		d.Index = append(d.Index, c.u16())
		d.SectorIndex = append(d.SectorIndex, c.u8())
		d.DetectionType = append(d.DetectionType, lookup(c, detectionTypes, c.u8(), start+3, "detection type"))
		d.DetectionMethod = append(d.DetectionMethod, lookup(c, detectionMethods, c.u8(), start+4, "detection method"))
		d.RejectionInfo1 = append(d.RejectionInfo1, c.u8())
		d.RejectionInfo2 = append(d.RejectionInfo2, c.u8())
		d.PostProcessingInfo = append(d.PostProcessingInfo, c.u8())
		d.DetectionClass = append(d.DetectionClass, c.u8())
		d.DetectionConfidence = append(d.DetectionConfidence, c.u8())
		c.u16()
		d.RangeFactor = append(d.RangeFactor, c.f32())
		d.QualityFactor = append(d.QualityFactor, c.f32())
		d.DetectionUncertaintyVer = append(d.DetectionUncertaintyVer, c.f32())
		d.DetectionUncertaintyHor = append(d.DetectionUncertaintyHor, c.f32())
		d.DetectionWindowLength = append(d.DetectionWindowLength, c.f32())
		d.EchoLength = append(d.EchoLength, c.f32())

		w.WCBeamNumber = append(w.WCBeamNumber, c.u16())
		w.WCRangeSamples = append(w.WCRangeSamples, c.u16())
		w.WCAcrossAngle = append(w.WCAcrossAngle, c.f32())

		refl.MeanAbsCoeff = append(refl.MeanAbsCoeff, float64(c.f32())/1000)
		refl.Reflectivity1 = append(refl.Reflectivity1, c.f32())
		refl.Reflectivity2 = append(refl.Reflectivity2, c.f32())
		refl.ReceiverSensitivityApplied = append(refl.ReceiverSensitivityApplied, c.f32())
		refl.SourceLevelApplied = append(refl.SourceLevelApplied, c.f32())
		refl.BSCalibration = append(refl.BSCalibration, c.f32())
		refl.TVG = append(refl.TVG, c.f32())

		ra.BeamAngleReRx = append(ra.BeamAngleReRx, c.f32())
		ra.BeamAngleCorrection = append(ra.BeamAngleCorrection, c.f32())
		ra.TwoWayTravelTime = append(ra.TwoWayTravelTime, c.f32())
		ra.TwoWayTravelTimeCorrection = append(ra.TwoWayTravelTimeCorrection, c.f32())

		g.DeltaLatitude = append(g.DeltaLatitude, c.f32())
		g.DeltaLongitude = append(g.DeltaLongitude, c.f32())
		g.Z = append(g.Z, c.f32())
		g.Y = append(g.Y, c.f32())
		g.X = append(g.X, c.f32())
		g.BeamIncAngleAdj = append(g.BeamIncAngleAdj, c.f32())
		g.RealTimeCleanInfo = append(g.RealTimeCleanInfo, c.u16())

		si.SIstartRange = append(si.SIstartRange, c.u16())
		si.SIcentreSample = append(si.SIcentreSample, c.u16())
		si.SInumSamples = append(si.SInumSamples, c.u16())
	}
	c.seek(base+n*stride, "soundings")

	w.Index = append([]uint16(nil), d.Index...)
	w.SectorIndex = append([]uint8(nil), d.SectorIndex...)
	refl.Index = append([]uint16(nil), d.Index...)
	refl.SectorIndex = append([]uint8(nil), d.SectorIndex...)
	ra.Index = append([]uint16(nil), d.Index...)
	ra.SectorIndex = append([]uint8(nil), d.SectorIndex...)
	g.Index = append([]uint16(nil), d.Index...)
	g.SectorIndex = append([]uint8(nil), d.SectorIndex...)
	si.Index = append([]uint16(nil), d.Index...)
	si.SectorIndex = append([]uint8(nil), d.SectorIndex...)
}

// snippets reads the int16 seabed image samples that follow the soundings
// and scatters them, in tenths of a dB, into the snippet grid.
func (c *cursor) snippets(r *MRZ) {
	si := &r.SeabedImage
	if c.err != nil {
		return
	}
	total, widest := 0, 0
	for _, n := range si.SInumSamples {
		total += int(n)
		if int(n) > widest {
			widest = int(n)
		}
	}
	start := c.pos()
	if !c.need(2*total, "seabed image samples") {
		return
	}
	// extra detections have snippets too, so rows cover them as well
	rows := r.RxInfo.NumSoundings()
	si.Snippets = NewGrid(rows, widest)
	for i, n := range si.SInumSamples {
		row := int(si.Index[i])
		if row >= rows && n > 0 {
			c.corrupt(start, "sounding %d has index %d outside %d snippet rows", i, row, rows)
			return
		}
		for j := 0; j < int(n); j++ {
			si.Snippets.Set(row, j, float64(c.i16())/10)
		}
	}
}

// PingStats are the few ping record fields the indexer needs.
type PingStats struct {
	Start        bool
	NumOfDgms    int
	NumTxSectors int
	NumBeams     int
}

// ReadMRZStats reads partition and sizing fields of a ping record without
// decoding soundings.
func ReadMRZStats(data []byte, offset int64) (PingStats, error) {
	c := newCursor(data, offset, KindMRZ.Tag())
	c.header()
	p := c.mpartition()
	c.skipSelfSized16("multibeam body")
	infoStart := c.pos()
	c.seek(infoStart+pingInfoTxSectorsOffset, "ping info")
	numTx := 0
	stride := 0
	if c.need(4, "ping info tx fields") {
		numTx = int(c.u16())
		stride = int(c.u16())
	}
	c.seek(infoStart, "ping info")
	c.skipSelfSized16("ping info")
	c.skip(numTx*stride, "tx sectors")
	beams := 0
	if c.need(4, "rx info") {
		c.u16()
		beams = int(c.u16())
	}
	if c.err != nil {
		return PingStats{}, c.err
	}
	return PingStats{Start: p.DgmNum == 1, NumOfDgms: int(p.NumOfDgms), NumTxSectors: numTx, NumBeams: beams}, nil
}
