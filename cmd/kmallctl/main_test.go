package main

import (
	"bufio"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/kmall/kmalltest"
	"example.com/kmgate/internal/report"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func writeSample(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, kmalltest.WriteFile(path,
		kmalltest.IIP(t0, kmalltest.SampleInstallText),
		kmalltest.SVP(kmalltest.Profile{
			Time: t0, ProfileTime: t0.Add(-time.Hour), Latitude: 59.9, Longitude: 10.7,
			Depth: []float32{0, 10}, SoundVelocity: []float32{1480, 1481},
		}),
		kmalltest.SPO(kmalltest.Fix{Time: t0.Add(time.Second), Latitude: 59.9, Longitude: 10.7}),
		kmalltest.MRZ(kmalltest.SimplePing(t0.Add(2*time.Second), 0, 6)),
		kmalltest.MRZ(kmalltest.SimplePing(t0.Add(3*time.Second), 1, 6)),
	))
	return path
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestIndexCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t, dir, "line.kmall")
	jsonOut := filepath.Join(dir, "index.json")

	code, out, errOut := runCmd(t, "index", "--in", in, "--json", jsonOut)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "records 5  pings 2")
	assert.Contains(t, out, "#MRZ")

	var idx struct {
		NumberOfPings int `json:"numberOfPings"`
		MaxBeams      int `json:"maxBeams"`
	}
	data, err := os.ReadFile(jsonOut)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.Equal(t, 2, idx.NumberOfPings)
	assert.Equal(t, 6, idx.MaxBeams)
}

func TestIndexCommandWithFilterAndCache(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t, dir, "line.kmall")

	code, out, errOut := runCmd(t, "index", "--in", in, "--where", `tag == "#SPO"`, "--cache", "--progress")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "records 1 ")
	assert.NotContains(t, out, "#MRZ")
	assert.Contains(t, out, "scanned")
	assert.FileExists(t, in+".idx")
}

func TestDumpCommand(t *testing.T) {
	in := writeSample(t, t.TempDir(), "line.kmall")
	code, out, errOut := runCmd(t, "dump", "--in", in, "--where", `tag != "#IIP"`, "--limit", "3", "--sorted")
	require.Equal(t, 0, code, errOut)

	var tags []string
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var line struct {
			Entry struct {
				Tag string `json:"tag"`
			} `json:"entry"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		tags = append(tags, line.Entry.Tag)
	}
	assert.Equal(t, []string{"#SVP", "#SPO", "#MRZ"}, tags)
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t, dir, "line.kmall")
	out := filepath.Join(dir, "xyz.json")

	code, _, errOut := runCmd(t, "extract", "--in", in, "--what", "xyz", "--out", out)
	require.Equal(t, 0, code, errOut)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"latitude"`)

	code, stdout, _ := runCmd(t, "extract", "--in", in, "--what", "backscatter", "--source", "bs_2")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"values"`)

	code, _, errOut = runCmd(t, "extract", "--in", in, "--what", "depth")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown extraction")
}

func TestSVPAndInstallCommands(t *testing.T) {
	in := writeSample(t, t.TempDir(), "line.kmall")
	code, out, errOut := runCmd(t, "svp", "--in", in)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1480")

	code, out, errOut = runCmd(t, "install", "--in", in)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "EM2040P")
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t, dir, "line.kmall")
	pdf := filepath.Join(dir, "summary.pdf")
	js := filepath.Join(dir, "summary.json")

	code, out, errOut := runCmd(t, "report", "--in", in, "--out", pdf, "--json", js)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Wrote "+pdf)
	assert.FileExists(t, pdf)
	sum, err := report.LoadSummaryJSON(js)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.NumberOfPings)
}

func TestManifestCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeSample(t, dir, "a.kmall")
	b := writeSample(t, dir, "b.kmall")
	out := filepath.Join(dir, "manifest.json")

	code, stdout, errOut := runCmd(t, "manifest", "--inputs", a+", "+b, "--out", out)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "2 items")

	code, stdout, errOut = runCmd(t, "manifest", "--verify", out)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "2 files match")

	require.NoError(t, os.WriteFile(b, []byte("changed"), 0o644))
	code, _, errOut = runCmd(t, "manifest", "--verify", out)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "b.kmall")
}

func TestBatchCommand(t *testing.T) {
	in := t.TempDir()
	writeSample(t, in, "a.kmall")
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.kmall"), []byte("short"), 0o644))
	outDir := filepath.Join(t.TempDir(), "out")

	code, out, _ := runCmd(t, "batch", "--in", in, "--out-dir", outDir)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "OK   a.kmall")
	assert.Contains(t, out, "FAIL bad.kmall")
	assert.FileExists(t, filepath.Join(outDir, "a.kmall.summary.json"))
}

func TestConfigSelectsCache(t *testing.T) {
	dir := t.TempDir()
	in := writeSample(t, dir, "line.kmall")
	cfgPath := filepath.Join(dir, "kmallctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  codec: s2\n  dir: cache\nlogs:\n  path: logs/kmallctl.log\n"), 0o644))

	code, _, errOut := runCmd(t, "svp", "--in", in, "--config", cfgPath)
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(dir, "cache", "line.kmall.idx"))

	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  codec: brotli\n"), 0o644))
	code, _, errOut = runCmd(t, "svp", "--in", in, "--config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "brotli")
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Commands:")

	code, _, errOut = runCmd(t, "index")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "required: --in")

	code, _, _ = runCmd(t, "dump", "--in", "x.kmall", "--limit", "-1")
	assert.Equal(t, 2, code)

	code, _, _ = runCmd(t, "index", "--bogus")
	assert.Equal(t, 2, code)

	code, out, _ := runCmd(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "kmallctl dev")
}

func TestManifestSigning(t *testing.T) {
	dir := t.TempDir()
	a := writeSample(t, dir, "a.kmall")
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}), 0o600))
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)}), 0o644))
	out := filepath.Join(dir, "manifest.json")

	code, stdout, errOut := runCmd(t, "manifest", "--inputs", a, "--out", out, "--sign-key", keyPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "manifest.json.jws")

	code, stdout, errOut = runCmd(t, "manifest", "--verify", out, "--pubkey", pubPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "signature OK")

	require.NoError(t, os.WriteFile(out+".jws", []byte("e30..AAAA\n"), 0o644))
	code, _, errOut = runCmd(t, "manifest", "--verify", out, "--pubkey", pubPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "signature")
}
