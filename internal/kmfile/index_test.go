package kmfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmall/kmalltest"
)

func TestMapIndexesEveryRecord(t *testing.T) {
	s := writeSurvey(t, "survey.kmall")
	idx, err := Map(s.path, Quiet())
	require.NoError(t, err)

	assert.Equal(t, "#MRZ", idx.PrimaryTag)
	assert.Equal(t, "kmall", idx.FileKind)
	assert.Equal(t, len(s.records), idx.NumberOfRecords)
	assert.Equal(t, 3, idx.NumberOfPings)
	assert.Equal(t, surveyBeams, idx.MaxBeams)
	assert.Equal(t, 2, idx.MaxTxSectors)
	assert.False(t, idx.HasSplitPings)
	assert.Empty(t, idx.Reordered)

	total, bytes := 0, int64(0)
	for _, entries := range idx.Entries {
		total += len(entries)
		for _, e := range entries {
			bytes += int64(e.Size)
		}
	}
	assert.Equal(t, idx.NumberOfRecords, total)
	assert.Equal(t, idx.FileSize, bytes)
	assert.Equal(t, []string{"#CPO", "#IIP", "#MRZ", "#SKM", "#SPO", "#SVP"}, idx.Tags())
	assert.Len(t, idx.Entries["#SVP"], 3)
}

func TestMapEntriesPointAtTheirRecords(t *testing.T) {
	f := openSurvey(t)
	for _, tag := range f.Index().Tags() {
		entries := f.Index().Entries[tag]
		recs, err := f.RecordsFromEntries(entries...)
		require.NoError(t, err, tag)
		require.Len(t, recs, len(entries))
		for i, rec := range recs {
			hdr := rec.DatagramHeader()
			assert.Equal(t, tag, hdr.Tag)
			assert.True(t, entries[i].Time.Equal(hdr.Time), "%s entry %d", tag, i)
			assert.Equal(t, entries[i].Size, hdr.Size)
		}
	}
}

func TestMapSortsOutOfOrderKinds(t *testing.T) {
	late := kmalltest.SPO(kmalltest.Fix{Time: at(5 * time.Second), Latitude: 59.9, Longitude: 10.7})
	early := kmalltest.SPO(kmalltest.Fix{Time: at(time.Second), Latitude: 59.8, Longitude: 10.6})
	ping := kmalltest.MRZ(kmalltest.SimplePing(at(2*time.Second), 0, 4))
	s := writeSurvey(t, "reorder.kmall", late, ping, early)

	m := common.NewMetrics()
	idx, err := Map(s.path, Quiet(), WithMetrics(m))
	require.NoError(t, err)

	spo := idx.Entries["#SPO"]
	require.Len(t, spo, 2)
	assert.True(t, spo[0].Time.Before(spo[1].Time))
	assert.Greater(t, spo[0].Offset, spo[1].Offset)
	assert.Equal(t, []string{"#SPO"}, idx.Reordered)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.Records)
	assert.EqualValues(t, 1, snap.Reorders)
	assert.Equal(t, idx.FileSize, snap.Bytes)
	assert.Equal(t, idx.FileSize, snap.TotalBytes)
}

func TestTimelineIsChronological(t *testing.T) {
	f := openSurvey(t)
	timeline := f.Index().Timeline()
	require.Len(t, timeline, f.Index().NumberOfRecords)
	for i := 1; i < len(timeline); i++ {
		prev, cur := timeline[i-1], timeline[i]
		assert.False(t, cur.Time.Before(prev.Time), "entry %d", i)
		if cur.Time.Equal(prev.Time) {
			assert.Greater(t, cur.Offset, prev.Offset)
		}
	}
}

func TestMapDetectsSplitPings(t *testing.T) {
	first := kmalltest.SimplePing(at(time.Second), 0, 4)
	first.NumOfDgms, first.DgmNum = 2, 1
	second := kmalltest.SimplePing(at(time.Second), 0, 4)
	second.NumOfDgms, second.DgmNum = 2, 2
	whole := kmalltest.SimplePing(at(2*time.Second), 1, 4)
	s := writeSurvey(t, "split.kmall", kmalltest.MRZ(first), kmalltest.MRZ(second), kmalltest.MRZ(whole))

	f, err := Open(s.path, Quiet())
	require.NoError(t, err)
	idx := f.Index()
	assert.True(t, idx.HasSplitPings)
	assert.Equal(t, 2, idx.NumberOfPings)
	assert.Equal(t, []int{0, 2}, idx.SplitStartIndex)
	assert.Equal(t, []int{2, 1}, idx.SplitNumParts)

	_, err = f.SourceLevel()
	assert.ErrorIs(t, err, kmall.ErrUnsupportedSplitPing)
	_, err = f.Position("#MRZ")
	assert.ErrorIs(t, err, kmall.ErrUnsupportedSplitPing)
	_, err = f.Snippets()
	assert.ErrorIs(t, err, kmall.ErrUnsupportedSplitPing)
}

func TestMapWaterColumnFile(t *testing.T) {
	wc := kmalltest.WaterColumn{
		Time:    at(time.Second),
		Sectors: []float32{-1, 0, 1},
		Beams: []kmalltest.WCBeam{
			{Angle: -10, Amp: []int8{1, 2}},
			{Angle: 0, Sector: 1, Amp: []int8{3, 4, 5, 6}},
		},
	}
	s := writeSurvey(t, "water.KMWCD", kmalltest.MWC(wc))
	idx, err := Map(s.path, Quiet())
	require.NoError(t, err)
	assert.Equal(t, "#MWC", idx.PrimaryTag)
	assert.Equal(t, 1, idx.NumberOfPings)
	assert.Equal(t, 2, idx.MaxBeams)
	assert.Equal(t, 3, idx.MaxTxSectors)
}

func TestMapRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.all")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := Map(path)
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
}

func TestMapRejectsBrokenFraming(t *testing.T) {
	ping := kmalltest.MRZ(kmalltest.SimplePing(at(time.Second), 0, 4))
	spo := kmalltest.SPO(kmalltest.Fix{Time: at(time.Second), Latitude: 59.9, Longitude: 10.7})
	cases := []struct {
		name string
		data []byte
	}{
		{"partial header", append(append([]byte{}, ping...), spo[:10]...)},
		{"size past end", ping[:len(ping)-8]},
		{"size below minimum", kmalltest.WithSize(spo, 12)},
		{"checksum mismatch", append(append([]byte{}, ping[:len(ping)-4]...), 1, 0, 0, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "broken.kmall")
			require.NoError(t, os.WriteFile(path, tc.data, 0o644))
			idx, err := Map(path, Quiet())
			assert.Nil(t, idx)
			assert.ErrorIs(t, err, kmall.ErrCorruptRecord)
		})
	}
}

func TestMapEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.kmall")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	idx, err := Map(path, Quiet())
	require.NoError(t, err)
	assert.Zero(t, idx.NumberOfRecords)
	assert.Zero(t, idx.NumberOfPings)
	assert.False(t, idx.HasSplitPings)
}

func TestAllRecordsOfType(t *testing.T) {
	f := openSurvey(t)

	recs, err := f.AllRecordsOfType("#SPO")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, kmall.KindSPO, recs[0].Kind())

	recs, err = f.AllRecordsOfType("#SVT")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = f.AllRecordsOfType("#XYZ")
	assert.ErrorIs(t, err, kmall.ErrInvalidArgument)
}
