// Package manifest records digests of survey deliverables.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/crypto"
	"example.com/kmgate/internal/kmfile"
)

type Item struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Sha256  string `json:"sha256"`
	Type    string `json:"type"`
	Records int    `json:"records,omitempty"`
	Pings   int    `json:"pings,omitempty"`
	// Error is set when a survey file could not be indexed.
	Error string `json:"error,omitempty"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

// Build digests every path. Survey files are indexed as well so that the
// manifest carries their record and ping counts; an indexing failure is
// noted on the item rather than failing the manifest.
func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		d, err := common.DigestFile(p)
		if err != nil {
			return m, err
		}
		item := Item{Path: p, Size: d.Size, Sha256: d.SHA256, Type: fileType(p)}
		if item.Type == "kmall" || item.Type == "kmwcd" {
			idx, err := kmfile.Map(p, kmfile.Quiet())
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Records = idx.NumberOfRecords
				item.Pings = idx.NumberOfPings
			}
		}
		m.Items = append(m.Items, item)
	}
	return m, nil
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kmall":
		return "kmall"
	case ".kmwcd":
		return "kmwcd"
	case ".idx":
		return "index"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	default:
		return "other"
	}
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Verify recomputes the digest of every item and returns the paths whose
// content no longer matches.
func Verify(m Manifest) ([]string, error) {
	var changed []string
	for _, item := range m.Items {
		d, err := common.DigestFile(item.Path)
		if err != nil {
			return changed, err
		}
		if d.SHA256 != item.Sha256 || d.Size != item.Size {
			changed = append(changed, item.Path)
		}
	}
	return changed, nil
}

// payload is the byte form signatures cover: compact JSON of m.
func payload(m Manifest) ([]byte, error) {
	return json.Marshal(m)
}

// Sign returns a detached compact JWS over m.
func Sign(m Manifest, privateKeyPEM []byte) (string, error) {
	p, err := payload(m)
	if err != nil {
		return "", err
	}
	sig, err := crypto.SignDetached(p, privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("sign manifest: %w", err)
	}
	return sig.Compact(), nil
}

// VerifySignature checks a detached compact JWS produced by Sign.
func VerifySignature(m Manifest, compact string, publicKeyPEM []byte) error {
	sig, err := crypto.ParseCompact(compact)
	if err != nil {
		return err
	}
	p, err := payload(m)
	if err != nil {
		return err
	}
	return crypto.VerifyDetached(p, sig, publicKeyPEM)
}
