// Package security provides the hardening helpers inputguardd needs around
// its key material: secret-file handling, memory wiping, path and log
// sanitization, and process-level lockdown.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"runtime"
)

// Wipe overwrites data with zeros so key material does not linger on the
// heap after use. The KeepAlive keeps the writes from being elided.
func Wipe(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// where they first differ. Unequal lengths return false immediately; the
// lengths of the values compared here are public.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// SecureRandom fills data from the system CSPRNG.
func SecureRandom(data []byte) error {
	_, err := rand.Read(data)
	return err
}
