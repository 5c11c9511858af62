package kmall

import "time"

var svpFormats = map[string]string{
	"S00": "sound velocity profile",
	"S01": "CTD profile",
}

type SVPInfo struct {
	Size       uint16    `json:"size"`
	NumSamples uint16    `json:"numSamples"`
	Format     string    `json:"format"`
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

type SVPSamples struct {
	Depth         []float32 `json:"depth"`
	SoundVelocity []float32 `json:"soundVelocity"`
	Temperature   []float32 `json:"temperature"`
	Salinity      []float32 `json:"salinity"`
}

const (
	svpInfoSize   = 28
	svpSampleSize = 20
)

// SVP is a sound velocity profile record.
type SVP struct {
	Header  Header     `json:"header"`
	Info    SVPInfo    `json:"info"`
	Samples SVPSamples `json:"samples"`
}

func (r *SVP) Kind() Kind             { return KindSVP }
func (r *SVP) DatagramHeader() Header { return r.Header }

func decodeSVP(data []byte, offset int64) (*SVP, error) {
	c := newCursor(data, offset, KindSVP.Tag())
	r := &SVP{Header: c.header()}
	start := c.pos()
	if c.need(svpInfoSize, "profile info") {
		in := &r.Info
		in.Size = c.u16()
		in.NumSamples = c.u16()
		format := c.bytes(4, "profile format")
		if len(format) == 4 {
			in.Format = lookup(c, svpFormats, string(format[:3]), start+4, "profile format")
		}
		in.Time = Timestamp(c.u32(), 0)
		in.Latitude = c.f64()
		in.Longitude = c.f64()
		c.endSelfSized(start, int(in.Size), svpInfoSize, "profile info")
	}
	n := int(r.Info.NumSamples)
	if c.need(n*svpSampleSize, "profile samples") {
		s := &r.Samples
		for i := 0; i < n; i++ {
			s.Depth = append(s.Depth, c.f32())
			s.SoundVelocity = append(s.SoundVelocity, c.f32())
			c.u32()
			s.Temperature = append(s.Temperature, c.f32())
			s.Salinity = append(s.Salinity, c.f32())
		}
	}
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

var svtInputFormats = map[uint16]string{
	1:  "AML NMEA",
	2:  "AML SV",
	3:  "AML SVT",
	4:  "AML SVP",
	5:  "Micro SV",
	6:  "Micro SVT",
	7:  "Micro SVP",
	8:  "Valeport MiniSVS",
	9:  "KSSIS 80",
	10: "KSSIS 43",
}

type SVTContent struct {
	SoundVelocity bool `json:"soundVelocity"`
	Temperature   bool `json:"temperature"`
	Pressure      bool `json:"pressure"`
	Salinity      bool `json:"salinity"`
}

type SVTInfo struct {
	Size                uint16        `json:"size"`
	Status              SensorStatus3 `json:"status"`
	InputFormat         string        `json:"inputFormat"`
	NumSamples          uint16        `json:"numSamples"`
	NumBytesPerSample   uint16        `json:"numBytesPerSample"`
	Content             SVTContent    `json:"content"`
	FilterTime          float32       `json:"filterTime"`
	SoundVelocityOffset float32       `json:"soundVelocityOffset"`
}

type SVTSamples struct {
	Time          []time.Time `json:"time"`
	SoundVelocity []float32   `json:"soundVelocity"`
	Temperature   []float32   `json:"temperature"`
	Pressure      []float32   `json:"pressure"`
	Salinity      []float32   `json:"salinity"`
}

const (
	svtInfoSize   = 20
	svtSampleSize = 24
)

// SVT is a sound velocity at transducer record.
type SVT struct {
	Header  Header     `json:"header"`
	Info    SVTInfo    `json:"info"`
	Samples SVTSamples `json:"samples"`
}

func (r *SVT) Kind() Kind             { return KindSVT }
func (r *SVT) DatagramHeader() Header { return r.Header }

func decodeSVT(data []byte, offset int64) (*SVT, error) {
	c := newCursor(data, offset, KindSVT.Tag())
	r := &SVT{Header: c.header()}
	start := c.pos()
	if c.need(svtInfoSize, "sound velocity sensor info") {
		in := &r.Info
		in.Size = c.u16()
		in.Status = DecodeSensorStatus(c.u16()).First3()
		in.InputFormat = lookup(c, svtInputFormats, c.u16(), start+4, "sound velocity input format")
		in.NumSamples = c.u16()
		in.NumBytesPerSample = c.u16()
		f := Flags(c.u16(), 4)
		in.Content = SVTContent{SoundVelocity: f[0], Temperature: f[1], Pressure: f[2], Salinity: f[3]}
		in.FilterTime = c.f32()
		in.SoundVelocityOffset = c.f32()
		c.endSelfSized(start, int(in.Size), svtInfoSize, "sound velocity sensor info")
	}
	n, stride := int(r.Info.NumSamples), int(r.Info.NumBytesPerSample)
	base := c.pos()
	if c.repeated(n, stride, svtSampleSize, "sound velocity samples") {
		s := &r.Samples
		for i := 0; i < n; i++ {
			c.seek(base+i*stride, "sound velocity sample")
			sec, nsec := c.u32(), c.u32()
			s.Time = append(s.Time, Timestamp(sec, nsec))
			s.SoundVelocity = append(s.SoundVelocity, c.f32())
			s.Temperature = append(s.Temperature, c.f32())
			s.Pressure = append(s.Pressure, c.f32())
			s.Salinity = append(s.Salinity, c.f32())
		}
		c.seek(base+n*stride, "sound velocity samples")
	}
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}
