// Package bodygen generates the random ASCII message bodies used by
// the producer worker (§1 scope: "random-text body generation" is an
// external collaborator, not part of the core epidemic engine, but
// still needs an implementation to run at all).
package bodygen

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 "

// NewSource seeds a *rand.Rand from the OS CSPRNG, falling back to the
// wall clock if that read fails. Tests can instead build their own
// rand.New(rand.NewSource(fixedSeed)) for determinism.
func NewSource() *rand.Rand {
	var buf [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.BigEndian.Uint64(buf[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// Random returns n bytes of printable ASCII drawn from src.
func Random(n int, src *rand.Rand) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[src.Intn(len(alphabet))]
	}
	return buf
}
