package indexcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedIndex struct {
	Path    string           `cbor:"1,keyasint"`
	Records int              `cbor:"2,keyasint"`
	Entries map[string][]int `cbor:"3,keyasint"`
	Created time.Time        `cbor:"4,keyasint"`
}

func sampleIndex() cachedIndex {
	return cachedIndex{
		Path:    "survey.kmall",
		Records: 4,
		Entries: map[string][]int{"#MRZ": {0, 812}, "#SPO": {400, 1300}},
		Created: time.Date(2024, 5, 2, 10, 0, 0, 123, time.UTC),
	}
}

func writeData(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, codec := range []string{"", "none", "s2", "lz4"} {
		t.Run("codec="+codec, func(t *testing.T) {
			path := writeData(t, "survey.kmall", []byte("datagrams"))
			opts := Options{Codec: codec}
			require.NoError(t, Save(path, sampleIndex(), opts))
			assert.FileExists(t, path+".idx")

			var got cachedIndex
			require.NoError(t, Load(path, &got, opts))
			want := sampleIndex()
			assert.Equal(t, want.Entries, got.Entries)
			assert.Equal(t, want.Records, got.Records)
			assert.True(t, want.Created.Equal(got.Created))
		})
	}
}

func TestSaveIntoCacheDir(t *testing.T) {
	path := writeData(t, "survey.kmall", []byte("datagrams"))
	dir := filepath.Join(t.TempDir(), "cache")
	opts := Options{Dir: dir}
	require.NoError(t, Save(path, sampleIndex(), opts))
	assert.Equal(t, filepath.Join(dir, "survey.kmall.idx"), SidecarPath(path, opts))
	assert.FileExists(t, SidecarPath(path, opts))
	assert.NoFileExists(t, path+".idx")

	var got cachedIndex
	require.NoError(t, Load(path, &got, opts))
	assert.Equal(t, 4, got.Records)
}

func TestLoadMiss(t *testing.T) {
	path := writeData(t, "survey.kmall", []byte("datagrams"))
	var got cachedIndex
	assert.ErrorIs(t, Load(path, &got, Options{}), ErrMiss)
}

func TestLoadStaleAfterFileChanges(t *testing.T) {
	path := writeData(t, "survey.kmall", []byte("datagrams"))
	require.NoError(t, Save(path, sampleIndex(), Options{}))
	info, err := os.Stat(path)
	require.NoError(t, err)

	// same size and modification time, different bytes
	require.NoError(t, os.WriteFile(path, []byte("DATAGRAMS"), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	var got cachedIndex
	assert.ErrorIs(t, Load(path, &got, Options{}), ErrStale)
}

func TestLoadCorruptSidecar(t *testing.T) {
	cases := []struct {
		name   string
		mangle func([]byte) []byte
	}{
		{"short", func(b []byte) []byte { return b[:10] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"unknown version", func(b []byte) []byte { b[4] = 9; return b }},
		{"payload digest", func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-1] }},
		{"unknown codec", func(b []byte) []byte { b[5] = 42; return b }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeData(t, "survey.kmall", []byte("datagrams"))
			require.NoError(t, Save(path, sampleIndex(), Options{}))
			data, err := os.ReadFile(path + ".idx")
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path+".idx", tc.mangle(data), 0o644))

			var got cachedIndex
			assert.ErrorIs(t, Load(path, &got, Options{}), ErrCorrupt)
		})
	}
}

func TestSaveRejectsUnknownCodec(t *testing.T) {
	path := writeData(t, "survey.kmall", []byte("datagrams"))
	assert.Error(t, Save(path, sampleIndex(), Options{Codec: "gzip"}))
	assert.NoFileExists(t, path+".idx")
}

func TestFingerprintLargeFile(t *testing.T) {
	data := make([]byte, 3*probeSize)
	path := writeData(t, "big.kmall", data)
	before, err := Fingerprint(path)
	require.NoError(t, err)
	again, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, before, again)

	info, err := os.Stat(path)
	require.NoError(t, err)
	data[len(data)-1] = 1
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))
	after, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
