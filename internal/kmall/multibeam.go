package kmall

import "math"

// MPartition tells which part of a split ping a record carries.
type MPartition struct {
	NumOfDgms uint16 `json:"numOfDgms"`
	DgmNum    uint16 `json:"dgmNum"`
}

const mpartitionSize = 4

func (c *cursor) mpartition() MPartition {
	if !c.need(mpartitionSize, "partition") {
		return MPartition{}
	}
	return MPartition{NumOfDgms: c.u16(), DgmNum: c.u16()}
}

// MBody is the common multibeam body shared by ping and water column
// records.
type MBody struct {
	Size               uint16 `json:"size"`
	PingCnt            uint16 `json:"pingCnt"`
	RxFansPerPing      uint8  `json:"rxFansPerPing"`
	RxFanIndex         uint8  `json:"rxFanIndex"`
	SwathsPerPing      uint8  `json:"swathsPerPing"`
	SwathAlongPosition uint8  `json:"swathAlongPosition"`
	TxTransducerInd    uint8  `json:"txTransducerInd"`
	RxTransducerInd    uint8  `json:"rxTransducerInd"`
	NumRxTransducers   uint8  `json:"numRxTransducers"`
	AlgorithmType      uint8  `json:"algorithmType"`
}

const mbodySize = 12

func (c *cursor) mbody() MBody {
	start := c.pos()
	if !c.need(mbodySize, "multibeam body") {
		return MBody{}
	}
	b := MBody{
		Size:               c.u16(),
		PingCnt:            c.u16(),
		RxFansPerPing:      c.u8(),
		RxFanIndex:         c.u8(),
		SwathsPerPing:      c.u8(),
		SwathAlongPosition: c.u8(),
		TxTransducerInd:    c.u8(),
		RxTransducerInd:    c.u8(),
		NumRxTransducers:   c.u8(),
		AlgorithmType:      c.u8(),
	}
	c.endSelfSized(start, int(b.Size), mbodySize, "multibeam body")
	return b
}

// endSelfSized moves to start+size after a self sized structure whose
// static layout needs at least min bytes.
func (c *cursor) endSelfSized(start, size, min int, what string) {
	if c.err != nil {
		return
	}
	if size < min {
		c.corrupt(start, "%s declares size %d, layout needs %d", what, size, min)
		return
	}
	c.seek(start+size, what)
}

var (
	beamSpacings = map[uint8]string{
		0: "Equidistant",
		1: "Equiangle",
		2: "High density",
	}
	depthModes = map[uint8]string{
		0:   "Very shallow",
		1:   "Shallow",
		2:   "Medium",
		3:   "Deep",
		4:   "Deeper",
		5:   "Very deep",
		6:   "Extra deep",
		7:   "Extreme deep",
		100: "Very shallow (Manually set)",
		101: "Shallow (Manually set)",
		102: "Medium (Manually set)",
		103: "Deep (Manually set)",
		104: "Deeper (Manually set)",
		105: "Very deep (Manually set)",
		106: "Extra deep (Manually set)",
		107: "Extreme deep (Manually set)",
	}
	detectionModes = map[uint8]string{
		0:   "Normal",
		1:   "Waterway",
		2:   "Tracking",
		3:   "Minimum depth",
		100: "Normal (Simulation)",
		101: "Waterway (Simulation)",
		102: "Tracking (Simulation)",
		103: "Minimum depth (Simulation)",
	}
	pulseForms = map[uint8]string{
		0: "CW",
		1: "mix",
		2: "FM",
	}
)

// NullFloat marks an unmapped frequency mode.
const NullFloat = -999.0

// FrequencyMode maps the ping frequency mode field to a centre frequency
// in Hz. Values of 100 and above are already frequencies.
func FrequencyMode(v float32) float64 {
	if v >= 100 {
		return float64(v)
	}
	switch v {
	case 4:
		return 40000
	case 3:
		return 50000
	case 2:
		return 85000
	case 1:
		return 75000
	case 0:
		return 70000
	}
	return NullFloat
}

// ModeStabilisation is the decoded mode and stabilisation bit field.
type ModeStabilisation struct {
	Pitch               bool   `json:"pitch"`
	Yaw                 bool   `json:"yaw"`
	SonarMode           bool   `json:"sonarMode"`
	AngularCoverageMode bool   `json:"angularCoverageMode"`
	SectorMode          bool   `json:"sectorMode"`
	SwathAlongPosition  string `json:"swathAlongPosition"`
}

func decodeModeStabilisation(v uint8) ModeStabilisation {
	f := Flags(uint16(v), 6)
	m := ModeStabilisation{
		Pitch:               f[0],
		Yaw:                 f[1],
		SonarMode:           f[2],
		AngularCoverageMode: f[3],
		SectorMode:          f[4],
		SwathAlongPosition:  "fixed",
	}
	if f[5] {
		m.SwathAlongPosition = "dynamic"
	}
	return m
}

// RuntimeFilter1 flags are read from bit 0 even though the format
// documentation numbers them from 1.
type RuntimeFilter1 struct {
	Slope                  bool `json:"slope"`
	Aeration               bool `json:"aeration"`
	Sector                 bool `json:"sector"`
	Interference           bool `json:"interference"`
	SpecialAmplitudeDetect bool `json:"specialAmplitudeDetect"`
}

func decodeRuntimeFilter1(v uint8) RuntimeFilter1 {
	f := Flags(uint16(v), 5)
	return RuntimeFilter1{
		Slope:                  f[0],
		Aeration:               f[1],
		Sector:                 f[2],
		Interference:           f[3],
		SpecialAmplitudeDetect: f[4],
	}
}

type RuntimeFilter2 struct {
	RangeGate         string `json:"rangeGate"`
	SpikeFilter       string `json:"spikeFilter"`
	PenetrationFilter string `json:"penetrationFilter"`
	PhaseRamp         string `json:"phaseRamp"`
}

func filterStrength(n uint8) string {
	switch n {
	case 0:
		return "off"
	case 1:
		return "weak"
	case 2:
		return "medium"
	}
	return "strong"
}

func decodeRuntimeFilter2(v uint16) RuntimeFilter2 {
	var f RuntimeFilter2
	switch Nibble(v, 0) {
	case 0:
		f.RangeGate = "small"
	case 1:
		f.RangeGate = "normal"
	default:
		f.RangeGate = "large"
	}
	f.SpikeFilter = filterStrength(Nibble(v, 1))
	f.PenetrationFilter = filterStrength(Nibble(v, 2))
	switch Nibble(v, 3) {
	case 0:
		f.PhaseRamp = "short"
	case 1:
		f.PhaseRamp = "normal"
	default:
		f.PhaseRamp = "long"
	}
	return f
}

// PingInfoV1 holds the fields appended by version 1 of the ping record.
type PingInfoV1 struct {
	BSCorrOffset      float32 `json:"bsCorrOffset"`
	LambertsLawActive uint8   `json:"lambertsLawActive"`
	IceWindow         uint8   `json:"iceWindow"`
	ActiveModes       uint16  `json:"activeModes"`
}

type PingInfo struct {
	Size                      uint16            `json:"size"`
	PingRate                  float32           `json:"pingRate"`
	BeamSpacing               string            `json:"beamSpacing"`
	DepthMode                 string            `json:"depthMode"`
	SubDepthMode              uint8             `json:"subDepthMode"`
	DistanceBetweenSwath      uint8             `json:"distanceBetweenSwath"`
	DetectionMode             string            `json:"detectionMode"`
	PulseForm                 string            `json:"pulseForm"`
	FrequencyMode             float64           `json:"frequencyMode"`
	FrequencyLimitLow         float32           `json:"frequencyLimitLow"`
	FrequencyLimitHigh        float32           `json:"frequencyLimitHigh"`
	MaxTotalTxPulseLength     float32           `json:"maxTotalTxPulseLength"`
	MaxEffTxPulseLength       float32           `json:"maxEffTxPulseLength"`
	MaxEffTxBandwidth         float32           `json:"maxEffTxBandwidth"`
	AbsorptionCoeff           float64           `json:"absorptionCoeff"`
	PortSectorEdge            float32           `json:"portSectorEdge"`
	StarbSectorEdge           float32           `json:"starbSectorEdge"`
	PortMeanCov               float32           `json:"portMeanCov"`
	StarbMeanCov              float32           `json:"starbMeanCov"`
	PortMetricCov             uint16            `json:"portMetricCov"`
	StarbMetricCov            uint16            `json:"starbMetricCov"`
	ModeStabilisation         ModeStabilisation `json:"modeStabilisation"`
	RuntimeFilter1            RuntimeFilter1    `json:"runtimeFilter1"`
	RuntimeFilter2            RuntimeFilter2    `json:"runtimeFilter2"`
	PipeTrackingStatus        uint32            `json:"pipeTrackingStatus"`
	TransmitArraySizeUsed     float32           `json:"transmitArraySizeUsed"`
	ReceiveArraySizeUsed      float32           `json:"receiveArraySizeUsed"`
	TransmitPowerDB           float32           `json:"transmitPowerDb"`
	SLrampUpTimeRemaining     uint16            `json:"slRampUpTimeRemaining"`
	YawAngle                  float32           `json:"yawAngle"`
	NumTxSectors              uint16            `json:"numTxSectors"`
	NumBytesPerTxSector       uint16            `json:"numBytesPerTxSector"`
	HeadingVessel             float32           `json:"headingVessel"`
	SoundSpeedAtTxDepth       float32           `json:"soundSpeedAtTxDepth"`
	TxTransducerDepth         float32           `json:"txTransducerDepth"`
	ZWaterLevelReRefPoint     float32           `json:"zWaterLevelReRefPoint"`
	XKmallToAll               float32           `json:"xKmallToAll"`
	YKmallToAll               float32           `json:"yKmallToAll"`
	LatLongInfo               uint8             `json:"latLongInfo"`
	PosSensorStatus           uint8             `json:"posSensorStatus"`
	AttitudeSensorStatus      uint8             `json:"attitudeSensorStatus"`
	Latitude                  float64           `json:"latitude"`
	Longitude                 float64           `json:"longitude"`
	EllipsoidHeightReRefPoint float32           `json:"ellipsoidHeightReRefPoint"`
	// V1 is nil for version 0 records.
	V1 *PingInfoV1 `json:"v1,omitempty"`
}

const (
	pingInfoSize   = 144
	pingInfoV1Size = 152
	// pingInfoTxSectorsOffset locates numTxSectors inside the ping info.
	pingInfoTxSectorsOffset = 92
)

func (c *cursor) pingInfo(version uint8) PingInfo {
	layout := pingInfoSize
	if version >= 1 {
		layout = pingInfoV1Size
	}
	start := c.pos()
	if !c.need(layout, "ping info") {
		return PingInfo{}
	}
	var p PingInfo
	p.Size = c.u16()
	c.u16()
	p.PingRate = c.f32()
	p.BeamSpacing = lookup(c, beamSpacings, c.u8(), start+8, "beam spacing")
	p.DepthMode = lookup(c, depthModes, c.u8(), start+9, "depth mode")
	p.SubDepthMode = c.u8()
	p.DistanceBetweenSwath = c.u8()
	p.DetectionMode = lookup(c, detectionModes, c.u8(), start+12, "detection mode")
	p.PulseForm = lookup(c, pulseForms, c.u8(), start+13, "pulse form")
	c.u16()
	p.FrequencyMode = FrequencyMode(c.f32())
	p.FrequencyLimitLow = c.f32()
	p.FrequencyLimitHigh = c.f32()
	p.MaxTotalTxPulseLength = c.f32()
	p.MaxEffTxPulseLength = c.f32()
	p.MaxEffTxBandwidth = c.f32()
	p.AbsorptionCoeff = float64(c.f32()) / 1000
	p.PortSectorEdge = c.f32()
	p.StarbSectorEdge = c.f32()
	p.PortMeanCov = c.f32()
	p.StarbMeanCov = c.f32()
	p.PortMetricCov = c.u16()
	p.StarbMetricCov = c.u16()
	p.ModeStabilisation = decodeModeStabilisation(c.u8())
	p.RuntimeFilter1 = decodeRuntimeFilter1(c.u8())
	p.RuntimeFilter2 = decodeRuntimeFilter2(c.u16())
	p.PipeTrackingStatus = c.u32()
	p.TransmitArraySizeUsed = c.f32()
	p.ReceiveArraySizeUsed = c.f32()
	p.TransmitPowerDB = c.f32()
	p.SLrampUpTimeRemaining = c.u16()
	c.u16()
	p.YawAngle = c.f32()
	p.NumTxSectors = c.u16()
	p.NumBytesPerTxSector = c.u16()
	p.HeadingVessel = c.f32()
	p.SoundSpeedAtTxDepth = c.f32()
	p.TxTransducerDepth = c.f32()
	p.ZWaterLevelReRefPoint = c.f32()
	p.XKmallToAll = c.f32()
	p.YKmallToAll = c.f32()
	p.LatLongInfo = c.u8()
	p.PosSensorStatus = c.u8()
	p.AttitudeSensorStatus = c.u8()
	c.u8()
	p.Latitude = c.f64()
	p.Longitude = c.f64()
	p.EllipsoidHeightReRefPoint = c.f32()
	if version >= 1 {
		p.V1 = &PingInfoV1{
			BSCorrOffset:      c.f32(),
			LambertsLawActive: c.u8(),
			IceWindow:         c.u8(),
			ActiveModes:       c.u16(),
		}
	}
	c.endSelfSized(start, int(p.Size), layout, "ping info")
	return p
}

// BSCorrOffset returns the backscatter correction offset, NaN before
// version 1.
func (p PingInfo) BSCorrOffset() float64 {
	if p.V1 == nil {
		return math.NaN()
	}
	return float64(p.V1.BSCorrOffset)
}

// LambertsLawActive returns the Lambert's law flag, NaN before version 1.
func (p PingInfo) LambertsLawActive() float64 {
	if p.V1 == nil {
		return math.NaN()
	}
	return float64(p.V1.LambertsLawActive)
}
