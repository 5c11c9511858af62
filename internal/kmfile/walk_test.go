package kmfile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/kmall"
	"example.com/kmgate/internal/kmall/kmalltest"
)

func collect(t *testing.T, f *File, opts WalkOptions) []MapEntry {
	t.Helper()
	var out []MapEntry
	require.NoError(t, f.Walk(context.Background(), opts, func(e MapEntry, rec kmall.Record) error {
		assert.Equal(t, e.Tag, rec.DatagramHeader().Tag)
		out = append(out, e)
		return nil
	}))
	return out
}

func TestWalkFileOrder(t *testing.T) {
	f := openSurvey(t)
	got := collect(t, f, WalkOptions{})
	require.Len(t, got, f.Index().NumberOfRecords)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Offset, got[i-1].Offset)
	}
	assert.Equal(t, "#IIP", got[0].Tag)
}

func TestWalkSortedWithFilterAndLimit(t *testing.T) {
	f := openSurvey(t)
	filter, err := NewEntryFilter(`tag == "#MRZ" || tag == "#SPO"`)
	require.NoError(t, err)

	got := collect(t, f, WalkOptions{Filter: filter, Sorted: true})
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Time.Before(got[i-1].Time))
	}

	got = collect(t, f, WalkOptions{Filter: filter, Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "#SPO", got[0].Tag)
	assert.Equal(t, "#MRZ", got[1].Tag)
}

func TestWalkSkipsUndecodableRecords(t *testing.T) {
	bist := kmalltest.Bare("#IBR", at(time.Second), []byte{0, 0, 0, 0})
	spo := kmalltest.SPO(kmalltest.Fix{Time: at(2 * time.Second), Latitude: 59.9, Longitude: 10.7})
	s := writeSurvey(t, "bist.kmall", bist, spo)
	f, err := Open(s.path, Quiet())
	require.NoError(t, err)

	for _, sorted := range []bool{false, true} {
		var skips []MapEntry
		got := collect(t, f, WalkOptions{Sorted: sorted, OnSkip: func(e MapEntry, err error) {
			assert.ErrorIs(t, err, kmall.ErrNotImplemented)
			skips = append(skips, e)
		}})
		require.Len(t, got, 1, "sorted=%v", sorted)
		assert.Equal(t, "#SPO", got[0].Tag)
		require.Len(t, skips, 1)
		assert.Equal(t, "#IBR", skips[0].Tag)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	f := openSurvey(t)
	n := 0
	err := f.Walk(context.Background(), WalkOptions{}, func(MapEntry, kmall.Record) error {
		n++
		if n == 3 {
			return ErrStopWalk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = f.Walk(ctx, WalkOptions{Sorted: true}, func(MapEntry, kmall.Record) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
