// Package random provides the uniform random source shared by the
// evolutionary operators. Every draw the engine makes goes through Source so
// tests can replay fixed sequences.
package random

import (
	"math/rand"
	"time"
)

// Source yields independent uniform draws.
type Source interface {
	// Intn returns a value in [0, n). It panics when n <= 0.
	Intn(n int) int
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// New returns a math/rand backed source. A zero seed is replaced by the
// current time.
func New(seed int64) Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Ensure returns src, or a clock-seeded source when src is nil.
func Ensure(src Source) Source {
	if src == nil {
		return New(0)
	}
	return src
}
