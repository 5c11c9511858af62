package kmfile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/kmall/kmalltest"
)

var t0 = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

// survey is a small .kmall file with every kind the queries read.
type survey struct {
	path    string
	records [][]byte
}

const surveyBeams = 6

func surveyRecords() [][]byte {
	profile := func(recTime, profTime time.Time, sv float32) []byte {
		return kmalltest.SVP(kmalltest.Profile{
			Time:          recTime,
			ProfileTime:   profTime,
			Latitude:      59.9,
			Longitude:     10.7,
			Depth:         []float32{0, 10, 20},
			SoundVelocity: []float32{sv, sv + 1, sv + 2},
		})
	}
	return [][]byte{
		kmalltest.IIP(t0, kmalltest.SampleInstallText),
		profile(at(time.Second), at(-time.Hour), 1480),
		kmalltest.SPO(kmalltest.Fix{Time: at(time.Second), Latitude: 59.9, Longitude: 10.7, EllHeight: 40}),
		kmalltest.MRZ(kmalltest.SimplePing(at(2*time.Second), 0, surveyBeams)),
		kmalltest.SKM(at(2*time.Second), true, 0,
			kmalltest.Motion{Time: at(2 * time.Second), Latitude: 59.9, Longitude: 10.7, EllHeight: 40, Roll: 1, Pitch: 2, Heading: 90, Heave: 0.1, DelayedHeave: 0.15},
			kmalltest.Motion{Time: at(2*time.Second + 100*time.Millisecond), Latitude: 59.91, Longitude: 10.71, EllHeight: 41, Roll: 1.5, Pitch: 2.5, Heading: 91, Heave: 0.2, DelayedHeave: 0.25},
		),
		kmalltest.CPO(kmalltest.Fix{Time: at(2500 * time.Millisecond), Latitude: 200, Longitude: 200}),
		kmalltest.MRZ(kmalltest.SimplePing(at(3*time.Second), 1, 4)),
		profile(at(3*time.Second), at(-time.Hour), 1490),
		profile(at(3500*time.Millisecond), at(-2*time.Hour), 1470),
		kmalltest.MRZ(kmalltest.SimplePing(at(4*time.Second), 2, surveyBeams)),
		kmalltest.SPO(kmalltest.Fix{Time: at(4 * time.Second), Latitude: 59.95, Longitude: 10.75, EllHeight: 42}),
	}
}

func writeSurvey(t *testing.T, name string, records ...[]byte) survey {
	t.Helper()
	if len(records) == 0 {
		records = surveyRecords()
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, kmalltest.WriteFile(path, records...))
	return survey{path: path, records: records}
}

func openSurvey(t *testing.T) *File {
	t.Helper()
	s := writeSurvey(t, "survey.kmall")
	f, err := Open(s.path, Quiet())
	require.NoError(t, err)
	return f
}
