package random

import "fmt"

// Sequence replays scripted draws. Ints and Floats are consumed in order and
// independently of each other. Running out of values panics.
type Sequence struct {
	Ints   []int
	Floats []float64

	intPos   int
	floatPos int
}

func (s *Sequence) Intn(n int) int {
	if n <= 0 {
		panic("random: invalid argument to Intn")
	}
	if s.intPos >= len(s.Ints) {
		panic(fmt.Sprintf("random: scripted ints exhausted after %d draws", s.intPos))
	}
	v := s.Ints[s.intPos]
	s.intPos++
	if v < 0 || v >= n {
		panic(fmt.Sprintf("random: scripted int %d outside [0,%d)", v, n))
	}
	return v
}

func (s *Sequence) Float64() float64 {
	if s.floatPos >= len(s.Floats) {
		panic(fmt.Sprintf("random: scripted floats exhausted after %d draws", s.floatPos))
	}
	v := s.Floats[s.floatPos]
	s.floatPos++
	return v
}

// Remaining reports how many scripted ints and floats are left.
func (s *Sequence) Remaining() (ints, floats int) {
	return len(s.Ints) - s.intPos, len(s.Floats) - s.floatPos
}
