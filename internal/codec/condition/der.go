package condition

// Minimal DER helpers for the crypto-condition subset the ledger accepts.
// Lengths up to four bytes are accepted in long form.

const (
	tagPreimageSha256 = 0xA0 // constructed, context-specific 0
	tagFingerprint    = 0x80
	tagCost           = 0x81
	tagPreimage       = 0x80
)

func appendLength(dst []byte, n int) []byte {
	switch {
	case n < 0x80:
		return append(dst, byte(n))
	case n <= 0xFF:
		return append(dst, 0x81, byte(n))
	default:
		return append(dst, 0x82, byte(n>>8), byte(n))
	}
}

// readLength parses a DER length and returns it with the number of bytes read.
func readLength(data []byte) (int, int, bool) {
	if len(data) < 1 {
		return 0, 0, false
	}
	first := data[0]
	if first < 0x80 {
		return int(first), 1, true
	}
	numBytes := int(first & 0x7F)
	if numBytes == 0 || numBytes > 4 || len(data) < 1+numBytes {
		return 0, 0, false
	}
	length := 0
	for i := 0; i < numBytes; i++ {
		length = length<<8 | int(data[1+i])
	}
	return length, 1 + numBytes, true
}

// readTLV reads one tag-length-value element and returns the value and the
// total bytes consumed.
func readTLV(data []byte, tag byte) ([]byte, int, bool) {
	if len(data) < 2 || data[0] != tag {
		return nil, 0, false
	}
	length, n, ok := readLength(data[1:])
	if !ok {
		return nil, 0, false
	}
	start := 1 + n
	if length > len(data)-start {
		return nil, 0, false
	}
	return data[start : start+length], start + length, true
}

// appendUnsigned writes v as a minimal DER INTEGER body.
func appendUnsigned(dst []byte, v uint32) []byte {
	var buf [5]byte
	i := len(buf)
	for {
		i--
		buf[i] = byte(v)
		v >>= 8
		if v == 0 {
			break
		}
	}
	if buf[i]&0x80 != 0 {
		i--
		buf[i] = 0
	}
	return append(dst, buf[i:]...)
}

func readUnsigned(body []byte) (uint32, bool) {
	if len(body) == 0 || len(body) > 5 || body[0]&0x80 != 0 {
		return 0, false
	}
	if len(body) == 5 && body[0] != 0 {
		return 0, false
	}
	var v uint64
	for _, b := range body {
		v = v<<8 | uint64(b)
	}
	return uint32(v), true
}
