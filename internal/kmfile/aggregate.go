package kmfile

import (
	"fmt"
	"math"
	"time"

	"github.com/google/btree"

	"example.com/kmgate/internal/kmall"
)

// EPSGWGS84 is the geographic reference of every position in a file.
const EPSGWGS84 = 4326

// delayedHeaveLimit bounds valid delayed heave values; sensors without
// delayed heave fill the field with a large sentinel.
const delayedHeaveLimit = 100

type PositionSeries struct {
	Source    string       `json:"source"`
	Time      []time.Time  `json:"time"`
	Latitude  kmall.Floats `json:"latitude"`
	Longitude kmall.Floats `json:"longitude"`
	Height    kmall.Floats `json:"height"`
	EPSG      int          `json:"epsg"`
}

type AttitudeSeries struct {
	Time         []time.Time   `json:"time"`
	Roll         kmall.Floats  `json:"roll"`
	Pitch        kmall.Floats  `json:"pitch"`
	Heading      kmall.Floats  `json:"heading"`
	Heave        kmall.Floats  `json:"heave"`
	DelayedHeave *DelayedHeave `json:"delayedHeave"`
}

type DelayedHeave struct {
	Time  []time.Time  `json:"time"`
	Heave kmall.Floats `json:"heave"`
}

// SonarSettings holds per ping transmit and receive settings. The grids
// carry the settings of the sector each sounding belongs to.
type SonarSettings struct {
	Time                 []time.Time  `json:"time"`
	TxArraySize          kmall.Floats `json:"txArraySize"`
	RxArraySize          kmall.Floats `json:"rxArraySize"`
	BSCorrOffset         kmall.Floats `json:"bsCorrOffset"`
	LambertsLaw          kmall.Floats `json:"lambertsLaw"`
	BSNormal             kmall.Floats `json:"bsNormal"`
	BSOblique            kmall.Floats `json:"bsOblique"`
	SeabedSampleRate     kmall.Floats `json:"seabedSampleRate"`
	Frequency            kmall.Grid   `json:"frequency"`
	Delay                kmall.Grid   `json:"delay"`
	Tilt                 kmall.Grid   `json:"tilt"`
	PulseLengthEffective kmall.Grid   `json:"pulseLengthEffective"`
	PulseLengthTotal     kmall.Grid   `json:"pulseLengthTotal"`
	Bandwidth            kmall.Grid   `json:"bandwidth"`
}

// BeamGrid is one value per ping and beam.
type BeamGrid struct {
	Time   []time.Time `json:"time"`
	Values kmall.Grid  `json:"values"`
}

type CalibrationGains struct {
	Time          []time.Time `json:"time"`
	RxSensitivity kmall.Grid  `json:"rxSensitivity"`
	BSCalibration kmall.Grid  `json:"bsCalibration"`
}

// TVGGainSettings describes TVG = X log(R) + 2 alpha R. X is not recorded
// and stays NaN.
type TVGGainSettings struct {
	Time  []time.Time  `json:"time"`
	X     kmall.Floats `json:"x"`
	Alpha kmall.Grid   `json:"alpha"`
}

type RawRange struct {
	Time              []time.Time  `json:"time"`
	SoundSpeed        kmall.Floats `json:"soundSpeed"`
	TxDepth           kmall.Floats `json:"txDepth"`
	Waterline         kmall.Floats `json:"waterline"`
	TxAngle           kmall.Grid   `json:"txAngle"`
	TxID              kmall.Grid   `json:"txId"`
	RxAngle           kmall.Grid   `json:"rxAngle"`
	RxAngleCorrection kmall.Grid   `json:"rxAngleCorrection"`
	TWTT              kmall.Grid   `json:"twtt"`
	TWTTCorrection    kmall.Grid   `json:"twttCorrection"`
}

type XYZ struct {
	Time            []time.Time `json:"time"`
	Latitude        kmall.Grid  `json:"latitude"`
	Longitude       kmall.Grid  `json:"longitude"`
	EllipsoidHeight kmall.Grid  `json:"ellipsoidHeight"`
	X               kmall.Grid  `json:"x"`
	Y               kmall.Grid  `json:"y"`
	Z               kmall.Grid  `json:"z"`
}

// Snippets holds seabed image samples. Samples has one beams x samples
// grid per ping.
type Snippets struct {
	Time         []time.Time  `json:"time"`
	Samples      []kmall.Grid `json:"samples"`
	CentreSample kmall.Grid   `json:"centreSample"`
	StartSample  kmall.Grid   `json:"startSample"`
	NumSamples   kmall.Grid   `json:"numSamples"`
	SampleRate   kmall.Floats `json:"sampleRate"`
}

type number interface {
	~uint8 | ~uint16 | ~float32 | ~float64
}

// setBeams writes values into row at the columns named by index. Indices
// beyond the grid belong to extra detections and are dropped.
func setBeams[T number](g kmall.Grid, row int, index []uint16, values []T) {
	for i, col := range index {
		if int(col) >= g.Cols || i >= len(values) {
			continue
		}
		g.Set(row, int(col), float64(values[i]))
	}
}

func nanFloats(n int) kmall.Floats {
	out := make(kmall.Floats, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func (f *File) checkSplit() error {
	if f.index.HasSplitPings {
		return fmt.Errorf("%w: %s has %d %s records for %d pings", kmall.ErrUnsupportedSplitPing,
			f.path, len(f.index.Primary()), f.index.PrimaryTag, f.index.NumberOfPings)
	}
	return nil
}

// pingRows and beamGrid size per-ping tables from the primary kind's
// statistics. Only #MRZ pings carry soundings, so eachPing refuses files
// whose primary kind is anything else and both numbers describe #MRZ.
func (f *File) pingRows() int {
	return f.index.NumberOfPings
}

func (f *File) beamGrid() kmall.Grid {
	return kmall.NewGrid(f.pingRows(), f.index.MaxBeams)
}

// eachPing walks the ping records in time order and returns their times.
func (f *File) eachPing(fn func(row int, r *kmall.MRZ)) ([]time.Time, error) {
	if err := f.checkSplit(); err != nil {
		return nil, err
	}
	if f.index.PrimaryTag != kmall.KindMRZ.Tag() {
		return nil, fmt.Errorf("%w: %s is a %s file, per-ping tables need #MRZ pings",
			kmall.ErrInvalidArgument, f.path, f.index.FileKind)
	}
	times := make([]time.Time, 0, f.pingRows())
	err := each(f, kmall.KindMRZ.Tag(), func(i int, r *kmall.MRZ) error {
		times = append(times, r.Header.Time)
		fn(i, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}

// Position returns the positions reported by source, one of #MRZ, #SKM,
// #SPO or #CPO. Ping positions carry the ping time; sensor positions carry
// the sensor time. Position records without a fix are dropped.
func (f *File) Position(source string) (*PositionSeries, error) {
	if source == "" {
		source = kmall.KindSPO.Tag()
	}
	out := &PositionSeries{Source: source, EPSG: EPSGWGS84}
	switch kmall.KindOf(source) {
	case kmall.KindMRZ:
		times, err := f.eachPing(func(_ int, r *kmall.MRZ) {
			out.Latitude = append(out.Latitude, r.PingInfo.Latitude)
			out.Longitude = append(out.Longitude, r.PingInfo.Longitude)
			out.Height = append(out.Height, float64(r.PingInfo.EllipsoidHeightReRefPoint))
		})
		out.Time = times
		return out, err
	case kmall.KindSKM:
		if err := f.checkSplit(); err != nil {
			return nil, err
		}
		err := each(f, source, func(_ int, r *kmall.SKM) error {
			s := r.Samples
			out.Time = append(out.Time, s.Time...)
			out.Latitude = append(out.Latitude, s.Latitude...)
			out.Longitude = append(out.Longitude, s.Longitude...)
			for _, h := range s.EllipsoidHeight {
				out.Height = append(out.Height, float64(h))
			}
			return nil
		})
		return out, err
	case kmall.KindSPO, kmall.KindCPO:
		if err := f.checkSplit(); err != nil {
			return nil, err
		}
		err := each(f, source, func(_ int, rec kmall.Record) error {
			var p *kmall.SPO
			switch r := rec.(type) {
			case *kmall.SPO:
				p = r
			case *kmall.CPO:
				p = &r.SPO
			}
			if p == nil || !p.Available() {
				return nil
			}
			out.Time = append(out.Time, p.Data.TimeFromSensor)
			out.Latitude = append(out.Latitude, p.Data.CorrectedLat)
			out.Longitude = append(out.Longitude, p.Data.CorrectedLong)
			out.Height = append(out.Height, float64(p.Data.EllipsoidHeightReRefPoint))
			return nil
		})
		return out, err
	}
	return nil, fmt.Errorf("%w: position source %q, want #MRZ, #SKM, #SPO or #CPO", kmall.ErrInvalidArgument, source)
}

// Attitude returns every attitude sample of the file. DelayedHeave is nil
// when no sample carries a valid delayed heave.
func (f *File) Attitude() (*AttitudeSeries, error) {
	if err := f.checkSplit(); err != nil {
		return nil, err
	}
	out := &AttitudeSeries{}
	dh := &DelayedHeave{}
	valid := false
	err := each(f, kmall.KindSKM.Tag(), func(_ int, r *kmall.SKM) error {
		s := r.Samples
		out.Time = append(out.Time, s.Time...)
		for i := range s.Time {
			out.Roll = append(out.Roll, float64(s.Roll[i]))
			out.Pitch = append(out.Pitch, float64(s.Pitch[i]))
			out.Heading = append(out.Heading, float64(s.Heading[i]))
			out.Heave = append(out.Heave, float64(s.Heave[i]))
		}
		dh.Time = append(dh.Time, s.DelayedHeaveTime...)
		for _, v := range s.DelayedHeave {
			dh.Heave = append(dh.Heave, float64(v))
			if math.Abs(float64(v)) <= delayedHeaveLimit {
				valid = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if valid {
		out.DelayedHeave = dh
	}
	return out, nil
}

// sectorValue maps each sounding to the setting of its transmit sector.
func sectorValue(g kmall.Grid, row int, r *kmall.MRZ, values []float32) {
	d := r.DetectionInfo
	for i, col := range d.Index {
		sector := int(d.SectorIndex[i])
		if int(col) >= g.Cols || sector >= len(values) {
			continue
		}
		g.Set(row, int(col), float64(values[sector]))
	}
}

func (f *File) SonarSettings() (*SonarSettings, error) {
	n := f.pingRows()
	out := &SonarSettings{
		TxArraySize:          nanFloats(n),
		RxArraySize:          nanFloats(n),
		BSCorrOffset:         nanFloats(n),
		LambertsLaw:          nanFloats(n),
		BSNormal:             nanFloats(n),
		BSOblique:            nanFloats(n),
		SeabedSampleRate:     nanFloats(n),
		Frequency:            f.beamGrid(),
		Delay:                f.beamGrid(),
		Tilt:                 f.beamGrid(),
		PulseLengthEffective: f.beamGrid(),
		PulseLengthTotal:     f.beamGrid(),
		Bandwidth:            f.beamGrid(),
	}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		out.TxArraySize[row] = float64(r.PingInfo.TransmitArraySizeUsed)
		out.RxArraySize[row] = float64(r.PingInfo.ReceiveArraySizeUsed)
		out.BSCorrOffset[row] = r.PingInfo.BSCorrOffset()
		out.LambertsLaw[row] = r.PingInfo.LambertsLawActive()
		out.BSNormal[row] = float64(r.RxInfo.BSnormal)
		out.BSOblique[row] = float64(r.RxInfo.BSoblique)
		out.SeabedSampleRate[row] = float64(r.RxInfo.SeabedImageSampleRate)

		tx := r.TxSectors
		sectorValue(out.Frequency, row, r, tx.CentreFrequency)
		sectorValue(out.Delay, row, r, tx.Delay)
		sectorValue(out.Tilt, row, r, tx.TiltAngle)
		sectorValue(out.PulseLengthEffective, row, r, tx.EffectiveSignalLength)
		sectorValue(out.PulseLengthTotal, row, r, tx.TotalSignalLength)
		sectorValue(out.Bandwidth, row, r, tx.SignalBandwidth)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

// SourceLevel returns the source level applied to each sounding.
func (f *File) SourceLevel() (*BeamGrid, error) {
	return f.reflectivityGrid(func(r *kmall.Reflectivity) []float32 { return r.SourceLevelApplied })
}

// TVGPerSounding returns the TVG gain at each detection.
func (f *File) TVGPerSounding() (*BeamGrid, error) {
	return f.reflectivityGrid(func(r *kmall.Reflectivity) []float32 { return r.TVG })
}

// Backscatter returns reflectivity "bs_1" or "bs_2".
func (f *File) Backscatter(source string) (*BeamGrid, error) {
	switch source {
	case "bs_1":
		return f.reflectivityGrid(func(r *kmall.Reflectivity) []float32 { return r.Reflectivity1 })
	case "bs_2", "":
		return f.reflectivityGrid(func(r *kmall.Reflectivity) []float32 { return r.Reflectivity2 })
	}
	return nil, fmt.Errorf("%w: backscatter source %q, want bs_1 or bs_2", kmall.ErrInvalidArgument, source)
}

func (f *File) reflectivityGrid(field func(*kmall.Reflectivity) []float32) (*BeamGrid, error) {
	out := &BeamGrid{Values: f.beamGrid()}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		setBeams(out.Values, row, r.Reflectivity.Index, field(&r.Reflectivity))
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

// CalibrationGains returns the receiver sensitivity (M) and backscatter
// calibration (BScorr) applied in BS = EL - SL - M + TVG + BScorr.
func (f *File) CalibrationGains() (*CalibrationGains, error) {
	out := &CalibrationGains{RxSensitivity: f.beamGrid(), BSCalibration: f.beamGrid()}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		refl := r.Reflectivity
		setBeams(out.RxSensitivity, row, refl.Index, refl.ReceiverSensitivityApplied)
		setBeams(out.BSCalibration, row, refl.Index, refl.BSCalibration)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

func (f *File) TVGGainSettings() (*TVGGainSettings, error) {
	out := &TVGGainSettings{X: nanFloats(f.pingRows()), Alpha: f.beamGrid()}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		setBeams(out.Alpha, row, r.Reflectivity.Index, r.Reflectivity.MeanAbsCoeff)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

// RawRange returns ranges and angles as measured, before ray tracing.
func (f *File) RawRange() (*RawRange, error) {
	n := f.pingRows()
	out := &RawRange{
		SoundSpeed:        nanFloats(n),
		TxDepth:           nanFloats(n),
		Waterline:         nanFloats(n),
		TxAngle:           kmall.NewGrid(n, f.index.MaxTxSectors),
		TxID:              f.beamGrid(),
		RxAngle:           f.beamGrid(),
		RxAngleCorrection: f.beamGrid(),
		TWTT:              f.beamGrid(),
		TWTTCorrection:    f.beamGrid(),
	}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		out.SoundSpeed[row] = float64(r.PingInfo.SoundSpeedAtTxDepth)
		out.TxDepth[row] = float64(r.PingInfo.TxTransducerDepth)
		out.Waterline[row] = float64(r.PingInfo.ZWaterLevelReRefPoint)

		tx := r.TxSectors
		for i, sector := range tx.SectorIndex {
			if int(sector) < out.TxAngle.Cols {
				out.TxAngle.Set(row, int(sector), float64(tx.TiltAngle[i]))
			}
		}
		ra := r.RangeAngle
		setBeams(out.TxID, row, r.DetectionInfo.Index, r.DetectionInfo.SectorIndex)
		setBeams(out.RxAngle, row, ra.Index, ra.BeamAngleReRx)
		setBeams(out.RxAngleCorrection, row, ra.Index, ra.BeamAngleCorrection)
		setBeams(out.TWTT, row, ra.Index, ra.TwoWayTravelTime)
		setBeams(out.TWTTCorrection, row, ra.Index, ra.TwoWayTravelTimeCorrection)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

// XYZ returns sounding positions. Latitude, longitude and height are
// absolute; x, y and z are offsets from the reference point.
func (f *File) XYZ() (*XYZ, error) {
	out := &XYZ{
		Latitude:        f.beamGrid(),
		Longitude:       f.beamGrid(),
		EllipsoidHeight: f.beamGrid(),
		X:               f.beamGrid(),
		Y:               f.beamGrid(),
		Z:               f.beamGrid(),
	}
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		g := r.GeoReferencedDepths
		p := r.PingInfo
		for i, col := range g.Index {
			if int(col) >= out.X.Cols {
				continue
			}
			c := int(col)
			out.Latitude.Set(row, c, float64(g.DeltaLatitude[i])+p.Latitude)
			out.Longitude.Set(row, c, float64(g.DeltaLongitude[i])+p.Longitude)
			out.EllipsoidHeight.Set(row, c, float64(g.Z[i])+float64(p.EllipsoidHeightReRefPoint))
		}
		setBeams(out.X, row, g.Index, g.X)
		setBeams(out.Y, row, g.Index, g.Y)
		setBeams(out.Z, row, g.Index, g.Z)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	return out, nil
}

// Snippets returns the seabed image of every ping, each padded to the
// longest snippet in the file.
func (f *File) Snippets() (*Snippets, error) {
	n := f.pingRows()
	out := &Snippets{
		CentreSample: f.beamGrid(),
		StartSample:  f.beamGrid(),
		NumSamples:   f.beamGrid(),
		SampleRate:   nanFloats(n),
	}
	images := make([]kmall.SeabedImage, 0, n)
	times, err := f.eachPing(func(row int, r *kmall.MRZ) {
		si := r.SeabedImage
		images = append(images, si)
		out.SampleRate[row] = float64(r.RxInfo.SeabedImageSampleRate)
		setBeams(out.CentreSample, row, si.Index, si.SIcentreSample)
		setBeams(out.StartSample, row, si.Index, si.SIstartRange)
		setBeams(out.NumSamples, row, si.Index, si.SInumSamples)
	})
	if err != nil {
		return nil, err
	}
	out.Time = times
	longest := 0
	for _, si := range images {
		for _, k := range si.SInumSamples {
			longest = max(longest, int(k))
		}
	}
	beams := f.index.MaxBeams
	out.Samples = make([]kmall.Grid, len(images))
	for row, si := range images {
		g := kmall.NewGrid(beams, longest)
		for i, col := range si.Index {
			if int(col) >= beams || int(col) >= si.Snippets.Rows {
				continue
			}
			src := si.Snippets.Row(int(col))
			for j := 0; j < int(si.SInumSamples[i]) && j < len(src); j++ {
				g.Set(int(col), j, src[j])
			}
		}
		out.Samples[row] = g
	}
	return out, nil
}

// SVP returns the sound velocity profiles, one per profile time in
// ascending order. Repeats of a profile keep the first record written.
func (f *File) SVP() ([]*kmall.SVP, error) {
	if err := f.checkSplit(); err != nil {
		return nil, err
	}
	tree := btree.NewG[*kmall.SVP](8, func(a, b *kmall.SVP) bool {
		return a.Info.Time.Before(b.Info.Time)
	})
	err := each(f, kmall.KindSVP.Tag(), func(_ int, r *kmall.SVP) error {
		if !tree.Has(r) {
			tree.ReplaceOrInsert(r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*kmall.SVP, 0, tree.Len())
	tree.Ascend(func(r *kmall.SVP) bool {
		out = append(out, r)
		return true
	})
	return out, nil
}

// Installation returns the installation parameters of the first #IIP
// record.
func (f *File) Installation() (*kmall.Installation, error) {
	if err := f.checkSplit(); err != nil {
		return nil, err
	}
	entries := f.index.Entries[kmall.KindIIP.Tag()]
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s has no #IIP record", kmall.ErrInvalidArgument, f.path)
	}
	recs, err := f.RecordsFromEntries(entries[0])
	if err != nil {
		return nil, err
	}
	iip, ok := recs[0].(*kmall.IIP)
	if !ok {
		return nil, kmall.Corrupt(entries[0].Tag, entries[0].Offset, "decoded as %v", recs[0].Kind())
	}
	return &iip.Installation, nil
}
