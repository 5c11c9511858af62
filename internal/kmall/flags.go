package kmall

// Flags returns the low n bits of v, least significant bit first.
func Flags(v uint16, n int) []bool {
	if n > 16 {
		n = 16
	}
	if n < 0 {
		n = 0
	}
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = v&(1<<uint(i)) != 0
	}
	return out
}

// Nibble returns the i-th 4-bit group of v, counting from the least
// significant end.
func Nibble(v uint16, i int) uint8 {
	return uint8((v >> (4 * uint(i))) & 0x0F)
}
