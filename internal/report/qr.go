package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DigestToQR creates a QR code PNG encoding a hex file digest.
func DigestToQR(digest string, size int) ([]byte, error) {
	normalized := normalizeDigest(digest)
	if normalized == "" {
		return nil, fmt.Errorf("digest is empty")
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(normalized, qrcode.Medium, size)
}

// normalizeDigest keeps the hex digits of digest, upper-cased.
func normalizeDigest(digest string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(digest)) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
