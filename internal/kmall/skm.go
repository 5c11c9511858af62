package kmall

import "time"

var skmInputFormats = map[uint16]string{
	1: "KM binary sensor input",
	2: "EM3000 data",
	3: "Sagem",
	4: "Seapath binary 11",
	5: "Seapath binary 23",
	6: "Seapath binary 26",
	7: "POS M/V GRP 102/103",
	8: "Coda Octopus MCOM",
}

// SKMContent flags which KM binary fields the sensor fills.
type SKMContent struct {
	HorizontalPosition bool `json:"horizontalPositionVelocity"`
	RollPitch          bool `json:"rollAndPitch"`
	Heading            bool `json:"heading"`
	Heave              bool `json:"heave"`
	Acceleration       bool `json:"acceleration"`
	DelayedHeave1      bool `json:"delayedHeave1"`
	DelayedHeave2      bool `json:"delayedHeave2"`
}

func decodeSKMContent(v uint16) SKMContent {
	f := Flags(v, 7)
	return SKMContent{
		HorizontalPosition: f[0],
		RollPitch:          f[1],
		Heading:            f[2],
		Heave:              f[3],
		Acceleration:       f[4],
		DelayedHeave1:      f[5],
		DelayedHeave2:      f[6],
	}
}

type SKMInfo struct {
	Size        uint16        `json:"size"`
	System      uint8         `json:"system"`
	Status      SensorStatus4 `json:"status"`
	InputFormat string        `json:"inputFormat"`
	NumSamples  uint16        `json:"numSamples"`
	SampleSize  uint16        `json:"sampleSize"`
	Content     SKMContent    `json:"content"`
}

const (
	skmInfoSize         = 12
	skmSampleSize       = 120
	skmDelayedHeaveSize = 12
)

// SKMSamples holds the KM binary samples of a record, one element per
// sample in every slice.
type SKMSamples struct {
	DgmType    []string    `json:"dgmType"`
	DgmVersion []uint16    `json:"dgmVersion"`
	Time       []time.Time `json:"time"`
	Status     []uint32    `json:"status"`

	Latitude        []float64 `json:"latitude"`
	Longitude       []float64 `json:"longitude"`
	EllipsoidHeight []float32 `json:"ellipsoidHeight"`

	Roll      []float32 `json:"roll"`
	Pitch     []float32 `json:"pitch"`
	Heading   []float32 `json:"heading"`
	Heave     []float32 `json:"heave"`
	RollRate  []float32 `json:"rollRate"`
	PitchRate []float32 `json:"pitchRate"`
	YawRate   []float32 `json:"yawRate"`

	VelNorth []float32 `json:"velNorth"`
	VelEast  []float32 `json:"velEast"`
	VelDown  []float32 `json:"velDown"`

	LatitudeError  []float32 `json:"latitudeError"`
	LongitudeError []float32 `json:"longitudeError"`
	HeightError    []float32 `json:"ellipsoidHeightError"`
	RollError      []float32 `json:"rollError"`
	PitchError     []float32 `json:"pitchError"`
	HeadingError   []float32 `json:"headingError"`
	HeaveError     []float32 `json:"heaveError"`

	NorthAcceleration []float32 `json:"northAcceleration"`
	EastAcceleration  []float32 `json:"eastAcceleration"`
	DownAcceleration  []float32 `json:"downAcceleration"`

	// Delayed heave is only present when both delayed heave content bits
	// are set.
	DelayedHeaveTime []time.Time `json:"delayedHeaveTime,omitempty"`
	DelayedHeave     []float32   `json:"delayedHeave,omitempty"`
}

// SKM is a KM binary attitude and position sensor record.
type SKM struct {
	Header  Header     `json:"header"`
	Info    SKMInfo    `json:"info"`
	Samples SKMSamples `json:"samples"`
}

func (r *SKM) Kind() Kind             { return KindSKM }
func (r *SKM) DatagramHeader() Header { return r.Header }

func (c *cursor) skmInfo() SKMInfo {
	start := c.pos()
	if !c.need(skmInfoSize, "KM binary sensor info") {
		return SKMInfo{}
	}
	var in SKMInfo
	in.Size = c.u16()
	in.System = c.u8()
	in.Status = DecodeSensorStatus(uint16(c.u8())).First4()
	in.InputFormat = lookup(c, skmInputFormats, c.u16(), start+4, "KM binary input format")
	in.NumSamples = c.u16()
	in.SampleSize = c.u16()
	in.Content = decodeSKMContent(c.u16())
	c.endSelfSized(start, int(in.Size), skmInfoSize, "KM binary sensor info")
	return in
}

func decodeSKM(data []byte, offset int64) (*SKM, error) {
	c := newCursor(data, offset, KindSKM.Tag())
	r := &SKM{Header: c.header()}
	r.Info = c.skmInfo()
	delayed := r.Info.Content.DelayedHeave1 && r.Info.Content.DelayedHeave2
	layout := skmSampleSize
	if delayed {
		layout += skmDelayedHeaveSize
	}
	n, stride := int(r.Info.NumSamples), int(r.Info.SampleSize)
	base := c.pos()
	if c.repeated(n, stride, layout, "KM binary samples") {
		s := &r.Samples
		for i := 0; i < n; i++ {
			c.seek(base+i*stride, "KM binary sample")
			s.DgmType = append(s.DgmType, decodeText(c.bytes(4, "KM binary type")))
			c.u16()
			s.DgmVersion = append(s.DgmVersion, c.u16())
			sec, nsec := c.u32(), c.u32()
			s.Time = append(s.Time, Timestamp(sec, nsec))
			s.Status = append(s.Status, c.u32())
			s.Latitude = append(s.Latitude, c.f64())
			s.Longitude = append(s.Longitude, c.f64())
			s.EllipsoidHeight = append(s.EllipsoidHeight, c.f32())
			s.Roll = append(s.Roll, c.f32())
			s.Pitch = append(s.Pitch, c.f32())
			s.Heading = append(s.Heading, c.f32())
			s.Heave = append(s.Heave, c.f32())
			s.RollRate = append(s.RollRate, c.f32())
			s.PitchRate = append(s.PitchRate, c.f32())
			s.YawRate = append(s.YawRate, c.f32())
			s.VelNorth = append(s.VelNorth, c.f32())
			s.VelEast = append(s.VelEast, c.f32())
			s.VelDown = append(s.VelDown, c.f32())
			s.LatitudeError = append(s.LatitudeError, c.f32())
			s.LongitudeError = append(s.LongitudeError, c.f32())
			s.HeightError = append(s.HeightError, c.f32())
			s.RollError = append(s.RollError, c.f32())
			s.PitchError = append(s.PitchError, c.f32())
			s.HeadingError = append(s.HeadingError, c.f32())
			s.HeaveError = append(s.HeaveError, c.f32())
			s.NorthAcceleration = append(s.NorthAcceleration, c.f32())
			s.EastAcceleration = append(s.EastAcceleration, c.f32())
			s.DownAcceleration = append(s.DownAcceleration, c.f32())
			if delayed {
				dsec, dnsec := c.u32(), c.u32()
				s.DelayedHeaveTime = append(s.DelayedHeaveTime, Timestamp(dsec, dnsec))
				s.DelayedHeave = append(s.DelayedHeave, c.f32())
			}
		}
		c.seek(base+n*stride, "KM binary samples")
	}
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}
