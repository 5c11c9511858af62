package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/kmgate/internal/kmall/kmalltest"
)

func TestBuildSaveVerify(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	survey := filepath.Join(dir, "line.kmall")
	require.NoError(t, kmalltest.WriteFile(survey,
		kmalltest.MRZ(kmalltest.SimplePing(t0, 0, 4)),
		kmalltest.MRZ(kmalltest.SimplePing(t0.Add(time.Second), 1, 4)),
		kmalltest.SPO(kmalltest.Fix{Time: t0, Latitude: 59.9, Longitude: 10.7}),
	))
	broken := filepath.Join(dir, "broken.kmwcd")
	require.NoError(t, os.WriteFile(broken, []byte("not a datagram"), 0o644))
	notes := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notes, []byte("%PDF-1.3"), 0o644))

	m, err := Build([]string{survey, broken, notes})
	require.NoError(t, err)
	require.Len(t, m.Items, 3)
	assert.Equal(t, "sha256", m.ShaAlgo)

	assert.Equal(t, "kmall", m.Items[0].Type)
	assert.Equal(t, 3, m.Items[0].Records)
	assert.Equal(t, 2, m.Items[0].Pings)
	assert.Len(t, m.Items[0].Sha256, 64)

	assert.Equal(t, "kmwcd", m.Items[1].Type)
	assert.NotEmpty(t, m.Items[1].Error)
	assert.Zero(t, m.Items[1].Records)

	assert.Equal(t, "pdf", m.Items[2].Type)
	assert.EqualValues(t, 8, m.Items[2].Size)

	out := filepath.Join(dir, "manifest.json")
	require.NoError(t, Save(m, out))
	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, m.Items, loaded.Items)

	changed, err := Verify(loaded)
	require.NoError(t, err)
	assert.Empty(t, changed)

	require.NoError(t, os.WriteFile(notes, []byte("%PDF-1.4"), 0o644))
	changed, err = Verify(loaded)
	require.NoError(t, err)
	assert.Equal(t, []string{notes}, changed)
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build([]string{filepath.Join(t.TempDir(), "gone.kmall")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSignatureSurvivesSaveLoad(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	dir := t.TempDir()
	file := filepath.Join(dir, "notes.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))
	m, err := Build([]string{file})
	require.NoError(t, err)
	sig, err := Sign(m, privPEM)
	require.NoError(t, err)

	out := filepath.Join(dir, "manifest.json")
	require.NoError(t, Save(m, out))
	loaded, err := Load(out)
	require.NoError(t, err)
	require.NoError(t, VerifySignature(loaded, sig, pubPEM))

	loaded.Items[0].Size++
	assert.Error(t, VerifySignature(loaded, sig, pubPEM))
}
