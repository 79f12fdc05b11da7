// Package conv formats numbers into caller-provided byte slices without fmt
// or strconv, for text drawn on the panel.
package conv

const hexd = "0123456789ABCDEF"

// AppendUint appends the decimal form of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendAddr appends a 7-bit address as "0x" and two uppercase hex digits.
func AppendAddr(dst []byte, a uint8) []byte {
	return append(dst, '0', 'x', hexd[a>>4], hexd[a&0xF])
}
