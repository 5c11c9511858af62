package kmall

import (
	"golang.org/x/text/encoding/unicode"
)

// decodeText converts an embedded text block to a Go string. Invalid UTF-8
// sequences become the replacement character; trailing NUL padding is
// dropped.
func decodeText(raw []byte) string {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(raw[:end])
	if err != nil {
		return string(raw[:end])
	}
	return string(out)
}

// textBlock reads n bytes of text plus the pad byte that follows an odd
// length block.
func (c *cursor) textBlock(n int, what string) string {
	if n < 0 {
		c.corrupt(c.pos(), "%s declares negative length %d", what, n)
		return ""
	}
	raw := c.bytes(n, what)
	if n%2 == 1 {
		c.skip(1, what+" pad")
	}
	return decodeText(raw)
}
