package crypto

import (
	"crypto/rand"
	"errors"
	"io"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// ErrRandomGeneration is returned when random number generation fails.
var ErrRandomGeneration = errors.New("failed to generate random bytes")

// RandomBytes generates n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, ErrRandomGeneration
	}
	return b, nil
}

// secureEraseNoop keeps the compiler from eliding the zeroing loop.
var secureEraseNoop atomic.Uint64

// SecureErase overwrites b with zeros. Copies made elsewhere (registers,
// swap, garbage not yet collected) are not reached.
func SecureErase(b []byte) {
	if len(b) == 0 {
		return
	}

	p := unsafe.Pointer(&b[0])
	for i := 0; i < len(b); i++ {
		*(*byte)(unsafe.Add(p, i)) = 0
	}
	runtime.KeepAlive(b)

	var sum uint64
	for i := 0; i < len(b); i++ {
		sum += uint64(b[i])
	}
	secureEraseNoop.Add(sum)
}
