package kmall

import (
	"time"

	"example.com/kmgate/internal/nmea"
)

// SInfo is the sensor info block shared by the external sensor records.
type SInfo struct {
	Size       uint16 `json:"size"`
	System     uint16 `json:"system"`
	StatusBits uint16 `json:"statusBits"`
}

const sinfoSize = 8

func (c *cursor) sinfo() SInfo {
	start := c.pos()
	if !c.need(sinfoSize, "sensor info") {
		return SInfo{}
	}
	s := SInfo{Size: c.u16(), System: c.u16(), StatusBits: c.u16()}
	c.u16()
	c.endSelfSized(start, int(s.Size), sinfoSize, "sensor info")
	return s
}

// SensorStatus is the full decoded sensor status word. Record kinds keep
// the leading subset that applies to them.
type SensorStatus struct {
	Active          bool   `json:"sensorActive"`
	DataValid1      string `json:"dataValid1"`
	DataValid2      string `json:"dataValid2"`
	VelocitySource  string `json:"velocitySource"`
	TimeSource      string `json:"timeSource"`
	MotionCorrected bool   `json:"motionCorrected"`
	QualityCheck    string `json:"qualityCheck"`
}

// DecodeSensorStatus decodes the status bits: 0 active, 2 reduced
// performance, 4 invalid data, 6 velocity from PU, 9 time from datagram,
// 10 motion corrected, 11 operator quality check.
func DecodeSensorStatus(v uint16) SensorStatus {
	f := Flags(v, 12)
	s := SensorStatus{
		Active:          f[0],
		DataValid1:      "Data OK",
		DataValid2:      "Data OK",
		VelocitySource:  "Sensor",
		TimeSource:      "PU",
		MotionCorrected: f[10],
		QualityCheck:    "Normal",
	}
	if f[2] {
		s.DataValid1 = "Reduced Performance"
	}
	if f[4] {
		s.DataValid2 = "Invalid data"
	}
	if f[6] {
		s.VelocitySource = "PU"
	}
	if f[9] {
		s.TimeSource = "Datagram"
	}
	if f[11] {
		s.QualityCheck = "Operator"
	}
	return s
}

// SensorStatus4 is the status subset kept by attitude, depth and height
// records.
type SensorStatus4 struct {
	Active         bool   `json:"sensorActive"`
	DataValid1     string `json:"dataValid1"`
	DataValid2     string `json:"dataValid2"`
	VelocitySource string `json:"velocitySource"`
}

func (s SensorStatus) First4() SensorStatus4 {
	return SensorStatus4{Active: s.Active, DataValid1: s.DataValid1, DataValid2: s.DataValid2, VelocitySource: s.VelocitySource}
}

// SensorStatus3 is the status subset kept by sound velocity records.
type SensorStatus3 struct {
	Active     bool   `json:"sensorActive"`
	DataValid1 string `json:"dataValid1"`
	DataValid2 string `json:"dataValid2"`
}

func (s SensorStatus) First3() SensorStatus3 {
	return SensorStatus3{Active: s.Active, DataValid1: s.DataValid1, DataValid2: s.DataValid2}
}

type ClockStatus struct {
	Active     string `json:"sensorActive"`
	DataValid1 string `json:"dataValid1"`
	DataValid2 string `json:"dataValid2"`
}

func (s SensorStatus) Clock() ClockStatus {
	cs := ClockStatus{Active: "Sensor not active", DataValid1: s.DataValid1, DataValid2: s.DataValid2}
	if s.Active {
		cs.Active = "Valid data and 1PPS OK"
	}
	if s.DataValid1 != "Data OK" {
		cs.DataValid1 = "No time synchronisation of PU"
	}
	return cs
}

// PositionUnavailable is the latitude and longitude value of a position
// record without a fix.
const PositionUnavailable = 200

type PositionData struct {
	TimeFromSensor            time.Time `json:"timeFromSensor"`
	PosFixQuality             float32   `json:"posFixQuality"`
	CorrectedLat              float64   `json:"correctedLat"`
	CorrectedLong             float64   `json:"correctedLong"`
	SpeedOverGround           float32   `json:"speedOverGround"`
	CourseOverGround          float32   `json:"courseOverGround"`
	EllipsoidHeightReRefPoint float32   `json:"ellipsoidHeightReRefPoint"`
	RawSentence               string    `json:"rawSentence"`
	GGA                       nmea.GGA  `json:"gga"`
}

const positionDataSize = 40

// SPO is a sensor position record.
type SPO struct {
	Header     Header       `json:"header"`
	SensorInfo SInfo        `json:"sensorInfo"`
	Status     SensorStatus `json:"status"`
	Data       PositionData `json:"data"`
}

func (r *SPO) Kind() Kind             { return KindSPO }
func (r *SPO) DatagramHeader() Header { return r.Header }

// Available reports whether the record carries a position fix.
func (r *SPO) Available() bool {
	return r.Data.CorrectedLat != PositionUnavailable
}

// CPO is a compatibility position record with the same layout as SPO.
type CPO struct {
	SPO
}

func (r *CPO) Kind() Kind { return KindCPO }

func decodePosition(kind Kind, data []byte, offset int64) (*SPO, error) {
	c := newCursor(data, offset, kind.Tag())
	r := &SPO{Header: c.header()}
	r.SensorInfo = c.sinfo()
	r.Status = DecodeSensorStatus(r.SensorInfo.StatusBits)
	if c.need(positionDataSize, "position data") {
		d := &r.Data
		sec, nsec := c.u32(), c.u32()
		d.TimeFromSensor = Timestamp(sec, nsec)
		d.PosFixQuality = c.f32()
		d.CorrectedLat = c.f64()
		d.CorrectedLong = c.f64()
		d.SpeedOverGround = c.f32()
		d.CourseOverGround = c.f32()
		d.EllipsoidHeightReRefPoint = c.f32()
	}
	textAt := c.pos()
	r.Data.RawSentence = decodeText(c.rest("position sentence"))
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	gga, err := nmea.ParseGGA(r.Data.RawSentence)
	if err != nil {
		return nil, &RecordError{Tag: kind.Tag(), Offset: offset + int64(textAt), Err: err}
	}
	r.Data.GGA = gga
	return r, nil
}

var clockSystems = map[uint16]string{
	0: "Time synchronisation from clock data, no 1PPS",
	2: "Time synchronisation from active position data",
	4: "Time synchronisation from clock data, 1 PPS active",
	5: "Time synchronisation from active position data, 1 PPS active",
}

type ClockData struct {
	Offset      float32  `json:"offset"`
	ClockDevPU  uint32   `json:"clockDevPU"`
	RawSentence string   `json:"rawSentence"`
	ZDA         nmea.ZDA `json:"zda"`
}

// SCL is a clock sensor record.
type SCL struct {
	Header     Header      `json:"header"`
	SensorInfo SInfo       `json:"sensorInfo"`
	System     string      `json:"system"`
	Status     ClockStatus `json:"status"`
	Data       ClockData   `json:"data"`
}

func (r *SCL) Kind() Kind             { return KindSCL }
func (r *SCL) DatagramHeader() Header { return r.Header }

func decodeSCL(data []byte, offset int64) (*SCL, error) {
	c := newCursor(data, offset, KindSCL.Tag())
	r := &SCL{Header: c.header()}
	infoAt := c.pos()
	r.SensorInfo = c.sinfo()
	if c.err == nil {
		r.System = lookup(c, clockSystems, r.SensorInfo.System, infoAt+2, "clock system")
	}
	r.Status = DecodeSensorStatus(r.SensorInfo.StatusBits).Clock()
	if c.need(8, "clock data") {
		r.Data.Offset = c.f32()
		r.Data.ClockDevPU = c.u32()
	}
	textAt := c.pos()
	r.Data.RawSentence = decodeText(c.rest("clock sentence"))
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	zda, err := nmea.ParseZDA(r.Data.RawSentence)
	if err != nil {
		return nil, &RecordError{Tag: KindSCL.Tag(), Offset: offset + int64(textAt), Err: err}
	}
	r.Data.ZDA = zda
	return r, nil
}

type DepthData struct {
	DepthUsed float32 `json:"depthUsed"`
	DepthRaw  float32 `json:"depthRaw"`
	Offset    float32 `json:"offset"`
	Scale     float32 `json:"scale"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Raw       []byte  `json:"raw"`
}

// SDE is a depth (pressure) sensor record.
type SDE struct {
	Header     Header        `json:"header"`
	SensorInfo SInfo         `json:"sensorInfo"`
	Status     SensorStatus4 `json:"status"`
	Data       DepthData     `json:"data"`
}

func (r *SDE) Kind() Kind             { return KindSDE }
func (r *SDE) DatagramHeader() Header { return r.Header }

func decodeSDE(data []byte, offset int64) (*SDE, error) {
	c := newCursor(data, offset, KindSDE.Tag())
	r := &SDE{Header: c.header()}
	r.SensorInfo = c.sinfo()
	r.Status = DecodeSensorStatus(r.SensorInfo.StatusBits).First4()
	if c.need(32, "depth data") {
		r.Data.DepthUsed = c.f32()
		r.Data.DepthRaw = c.f32()
		r.Data.Offset = c.f32()
		r.Data.Scale = c.f32()
		r.Data.Latitude = c.f64()
		r.Data.Longitude = c.f64()
	}
	r.Data.Raw = c.rest("depth sensor data")
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

type HeightData struct {
	SensorType uint16  `json:"sensorType"`
	HeightUsed float32 `json:"heightUsed"`
	Raw        []byte  `json:"raw"`
}

// SHI is a height sensor record.
type SHI struct {
	Header     Header        `json:"header"`
	SensorInfo SInfo         `json:"sensorInfo"`
	Status     SensorStatus4 `json:"status"`
	Data       HeightData    `json:"data"`
}

func (r *SHI) Kind() Kind             { return KindSHI }
func (r *SHI) DatagramHeader() Header { return r.Header }

func decodeSHI(data []byte, offset int64) (*SHI, error) {
	c := newCursor(data, offset, KindSHI.Tag())
	r := &SHI{Header: c.header()}
	r.SensorInfo = c.sinfo()
	r.Status = DecodeSensorStatus(r.SensorInfo.StatusBits).First4()
	if c.need(6, "height data") {
		r.Data.SensorType = c.u16()
		r.Data.HeightUsed = c.f32()
	}
	r.Data.Raw = c.rest("height sensor data")
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}
