package l5codes

import "strconv"

// checksumBias and checksumModulus are part of the wire format shared with
// every printed marker; changing either invalidates existing codes.
const (
	checksumBias    = 12
	checksumModulus = 64
)

// SimpleHash is an order-dependent string hash: h = (31*h + c) mod 2^32
// over the bytes of s.
func SimpleHash(s string) int64 {
	var h int64
	for i := 0; i < len(s); i++ {
		h = (31*h + int64(s[i])) & 0xffffffff
	}
	return h
}

// Checksum returns the diagonal value a code must carry: the hash of the
// code's base-2 digits, minus 12, modulo 64. The modulo truncates toward
// zero, so codes whose hash is below 12 yield a negative value that no
// diagonal can match.
func Checksum(code int32) int {
	return int((SimpleHash(strconv.FormatInt(int64(code), 2)) - checksumBias) % checksumModulus)
}

// ReverseDiagonal returns the 6-bit pattern v read from the other end,
// which is how a marker's diagonal reads after a 180 degree turn.
func ReverseDiagonal(v int) int {
	r := 0
	for i := 0; i < diagonalBits; i++ {
		if v&(1<<i) != 0 {
			r |= 1 << (diagonalBits - 1 - i)
		}
	}
	return r
}
