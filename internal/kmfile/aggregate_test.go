package kmfile

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmall/kmalltest"
)

func TestPositionSources(t *testing.T) {
	f := openSurvey(t)

	spo, err := f.Position("")
	require.NoError(t, err)
	assert.Equal(t, "#SPO", spo.Source)
	assert.Equal(t, EPSGWGS84, spo.EPSG)
	require.Len(t, spo.Latitude, 2)
	assert.Equal(t, []float64{59.9, 59.95}, []float64(spo.Latitude))
	assert.InDelta(t, 42, spo.Height[1], 1e-6)
	assert.True(t, spo.Time[0].Equal(at(time.Second)))

	cpo, err := f.Position("#CPO")
	require.NoError(t, err)
	assert.Empty(t, cpo.Latitude)
	assert.Empty(t, cpo.Time)

	mrz, err := f.Position("#MRZ")
	require.NoError(t, err)
	require.Len(t, mrz.Latitude, 3)
	assert.InDelta(t, 59.9+2e-5, mrz.Latitude[2], 1e-9)
	assert.True(t, mrz.Time[1].Equal(at(3*time.Second)))

	skm, err := f.Position("#SKM")
	require.NoError(t, err)
	assert.Equal(t, []float64{59.9, 59.91}, []float64(skm.Latitude))
	assert.Len(t, skm.Time, 2)

	_, err = f.Position("#SVP")
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
}

func TestAttitude(t *testing.T) {
	f := openSurvey(t)
	att, err := f.Attitude()
	require.NoError(t, err)
	require.Len(t, att.Time, 2)
	assert.InDelta(t, 1.5, att.Roll[1], 1e-6)
	assert.InDelta(t, 2, att.Pitch[0], 1e-6)
	assert.InDelta(t, 91, att.Heading[1], 1e-6)
	assert.InDelta(t, 0.2, att.Heave[1], 1e-6)
	require.NotNil(t, att.DelayedHeave)
	assert.InDelta(t, 0.15, att.DelayedHeave.Heave[0], 1e-6)
	assert.True(t, att.DelayedHeave.Time[0].Equal(at(time.Second)))
}

func TestBeamGridsFillMissingBeamsWithNaN(t *testing.T) {
	f := openSurvey(t)
	sl, err := f.SourceLevel()
	require.NoError(t, err)
	g := sl.Values
	require.Equal(t, 3, g.Rows)
	require.Equal(t, surveyBeams, g.Cols)
	assert.Len(t, sl.Time, 3)

	assert.Equal(t, 210.0, g.At(0, 0))
	assert.Equal(t, 211.0, g.At(0, 5))
	// the second ping has four beams
	assert.Equal(t, 211.0, g.At(1, 3))
	assert.True(t, math.IsNaN(g.At(1, 4)))
	assert.True(t, math.IsNaN(g.At(1, 5)))
	assert.False(t, math.IsNaN(g.At(2, 5)))
}

func TestReflectivityQueries(t *testing.T) {
	f := openSurvey(t)

	bs1, err := f.Backscatter("bs_1")
	require.NoError(t, err)
	assert.InDelta(t, -32, bs1.Values.At(0, 2), 1e-6)
	bs2, err := f.Backscatter("bs_2")
	require.NoError(t, err)
	assert.InDelta(t, -33, bs2.Values.At(0, 2), 1e-6)
	_, err = f.Backscatter("bs_3")
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)

	tvg, err := f.TVGPerSounding()
	require.NoError(t, err)
	assert.Equal(t, 20.0, tvg.Values.At(2, 1))

	gains, err := f.CalibrationGains()
	require.NoError(t, err)
	assert.Equal(t, -180.0, gains.RxSensitivity.At(0, 4))
	assert.Equal(t, 1.5, gains.BSCalibration.At(0, 4))
	assert.True(t, math.IsNaN(gains.BSCalibration.At(1, 4)))

	settings, err := f.TVGGainSettings()
	require.NoError(t, err)
	require.Len(t, settings.X, 3)
	assert.True(t, math.IsNaN(settings.X[0]))
	assert.InDelta(t, 0.08, settings.Alpha.At(0, 0), 1e-9)
}

func TestSonarSettings(t *testing.T) {
	f := openSurvey(t)
	s, err := f.SonarSettings()
	require.NoError(t, err)
	require.Len(t, s.TxArraySize, 3)
	assert.Equal(t, 1.0, s.TxArraySize[0])
	assert.InDelta(t, 1.3, s.RxArraySize[0], 1e-6)
	assert.Equal(t, -1.5, s.BSCorrOffset[0])
	assert.Equal(t, 1.0, s.LambertsLaw[0])
	assert.Equal(t, -20.0, s.BSNormal[1])
	assert.Equal(t, -25.0, s.BSOblique[1])
	assert.Equal(t, 15000.0, s.SeabedSampleRate[2])

	assert.Equal(t, 300000.0, s.Frequency.At(0, 0))
	assert.Equal(t, 310000.0, s.Frequency.At(0, 5))
	assert.Equal(t, -1.0, s.Tilt.At(0, 1))
	assert.Equal(t, 1.0, s.Tilt.At(0, 4))
	assert.InDelta(t, 0.0001, s.PulseLengthEffective.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0003, s.PulseLengthTotal.At(2, 5), 1e-9)
	assert.Equal(t, 5500.0, s.Bandwidth.At(2, 5))
	assert.InDelta(t, 0.002, s.Delay.At(1, 3), 1e-9)
	assert.True(t, math.IsNaN(s.Delay.At(1, 5)))
}

func TestRawRange(t *testing.T) {
	f := openSurvey(t)
	rr, err := f.RawRange()
	require.NoError(t, err)
	assert.Equal(t, 1500.0, rr.SoundSpeed[0])
	assert.Equal(t, 2.5, rr.TxDepth[1])
	assert.InDelta(t, -0.1, rr.Waterline[2], 1e-6)

	require.Equal(t, 2, rr.TxAngle.Cols)
	assert.Equal(t, []float64{-1, 1}, rr.TxAngle.Row(0))
	assert.Equal(t, 0.0, rr.TxID.At(0, 2))
	assert.Equal(t, 1.0, rr.TxID.At(0, 3))
	assert.Equal(t, -60.0, rr.RxAngle.At(0, 0))
	assert.Equal(t, 60.0, rr.RxAngle.At(0, 5))
	assert.InDelta(t, 0.01, rr.RxAngleCorrection.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0205, rr.TWTT.At(0, 5), 1e-7)
	assert.Equal(t, 0.0, rr.TWTTCorrection.At(0, 5))
	assert.True(t, math.IsNaN(rr.TWTT.At(1, 5)))
}

func TestXYZ(t *testing.T) {
	f := openSurvey(t)
	xyz, err := f.XYZ()
	require.NoError(t, err)
	assert.InDelta(t, 59.9+1e-6, xyz.Latitude.At(0, 1), 1e-9)
	assert.InDelta(t, 10.7-1e-6, xyz.Longitude.At(0, 1), 1e-9)
	assert.InDelta(t, 55, xyz.EllipsoidHeight.At(0, 1), 1e-6)
	assert.InDelta(t, 0.3, xyz.X.At(0, 3), 1e-6)
	assert.InDelta(t, 15*math.Tan(60*math.Pi/180), xyz.Y.At(0, 5), 1e-4)
	assert.Equal(t, 15.0, xyz.Z.At(2, 0))
	assert.True(t, math.IsNaN(xyz.Z.At(1, 4)))
}

func TestSnippets(t *testing.T) {
	f := openSurvey(t)
	sn, err := f.Snippets()
	require.NoError(t, err)
	require.Len(t, sn.Samples, 3)
	g := sn.Samples[0]
	require.Equal(t, surveyBeams, g.Rows)
	require.Equal(t, 3, g.Cols)

	assert.InDelta(t, -30.0, g.At(0, 0), 1e-9)
	assert.True(t, math.IsNaN(g.At(0, 1)))
	assert.InDelta(t, -30.1, g.At(1, 0), 1e-9)
	assert.InDelta(t, -31.1, g.At(1, 1), 1e-9)
	assert.InDelta(t, -32.2, g.At(2, 2), 1e-9)

	assert.Equal(t, 2.0, sn.NumSamples.At(0, 1))
	assert.Equal(t, 100.0, sn.StartSample.At(0, 1))
	assert.Equal(t, 2.0, sn.CentreSample.At(0, 1))
	assert.True(t, math.IsNaN(sn.NumSamples.At(1, 5)))
	assert.Equal(t, []float64{15000, 15000, 15000}, []float64(sn.SampleRate))
}

func TestSVPKeepsFirstOfEachProfile(t *testing.T) {
	f := openSurvey(t)
	profiles, err := f.SVP()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.True(t, profiles[0].Info.Time.Before(profiles[1].Info.Time))
	assert.Equal(t, float32(1470), profiles[0].Samples.SoundVelocity[0])
	assert.Equal(t, float32(1480), profiles[1].Samples.SoundVelocity[0])
}

func TestInstallation(t *testing.T) {
	f := openSurvey(t)
	inst, err := f.Installation()
	require.NoError(t, err)
	assert.Equal(t, "EM2040P", inst.Values["sonar_model_number"])

	s := writeSurvey(t, "noinstall.kmall", surveyRecords()[1:]...)
	f, err = Open(s.path, Quiet())
	require.NoError(t, err)
	_, err = f.Installation()
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
}

func TestAggregatesEncodeNaNAsNull(t *testing.T) {
	f := openSurvey(t)
	sl, err := f.SourceLevel()
	require.NoError(t, err)
	data, err := json.Marshal(sl)
	require.NoError(t, err)
	assert.Contains(t, string(data), "null")
	assert.NotContains(t, string(data), "NaN")
}

func TestExtractDispatch(t *testing.T) {
	f := openSurvey(t)
	for _, what := range Extractions() {
		v, err := f.Extract(what, "")
		require.NoError(t, err, what)
		_, err = json.Marshal(v)
		require.NoError(t, err, what)
	}
	v, err := f.Extract("position", "#MRZ")
	require.NoError(t, err)
	assert.Equal(t, "#MRZ", v.(*PositionSeries).Source)

	_, err = f.Extract("depth", "")
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
}

func TestPingTablesNeedMRZPrimary(t *testing.T) {
	wc := kmalltest.WaterColumn{
		Time:    at(time.Second),
		Sectors: []float32{0},
		Beams:   []kmalltest.WCBeam{{Angle: -10, Amp: []int8{1, 2}}, {Angle: 10, Amp: []int8{3}}},
	}
	ping := kmalltest.MRZ(kmalltest.SimplePing(at(2*time.Second), 0, surveyBeams))
	s := writeSurvey(t, "mixed.kmwcd", kmalltest.MWC(wc), ping)
	f, err := Open(s.path, Quiet())
	require.NoError(t, err)
	require.Equal(t, 2, f.Index().MaxBeams)

	_, err = f.SourceLevel()
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
	_, err = f.XYZ()
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
	_, err = f.Position("#MRZ")
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)

	svp, err := f.SVP()
	require.NoError(t, err)
	assert.Empty(t, svp)
}
