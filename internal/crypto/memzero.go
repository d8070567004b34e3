package crypto

import "runtime"

// Wipe zeroes each buffer. This is best-effort: the runtime may already hold
// copies the caller cannot reach.
//
//go:noinline
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
	runtime.KeepAlive(bufs)
}
