// slot.go — generic weighted choice slots.
//
// A slot holds an ordered list of (value, weight) alternatives. Picking draws
// a uniform integer in [0, total) and walks the list accumulating weight
// until the running sum exceeds the draw, so zero-weight entries are never
// selected. A fixed slot memoizes its first pick and returns it for the
// lifetime of the owning map definition instance; a copy of the definition
// gets an independent, unresolved slot (see Slot.Copy).
package mapdef

import "math/rand"

// Weighted pairs a candidate value with its selection weight.
type Weighted[T any] struct {
	Value  T
	Weight int
}

// Slot is one weighted choice: pick one of N alternatives, optionally
// freezing the result on first pick.
type Slot[T any] struct {
	Alts []Weighted[T]
	Fix  bool

	resolved bool
	pick     T
}

// Pick selects one alternative. It reports false when the slot is empty or
// every weight is zero.
func (s *Slot[T]) Pick(rng *rand.Rand) (T, bool) {
	var zero T
	if s.Fix && s.resolved {
		return s.pick, true
	}
	total := 0
	for _, a := range s.Alts {
		total += a.Weight
	}
	if total <= 0 {
		return zero, false
	}
	draw := rng.Intn(total)
	sum := 0
	for _, a := range s.Alts {
		sum += a.Weight
		if sum > draw {
			if s.Fix {
				s.resolved = true
				s.pick = a.Value
			}
			return a.Value, true
		}
	}
	return zero, false
}

// Copy returns an independent slot with the memoized pick discarded, so a
// resolved map copy re-rolls everything that was not already fixed *and*
// starts fixed slots fresh.
func (s *Slot[T]) Copy() Slot[T] {
	return Slot[T]{
		Alts: append([]Weighted[T](nil), s.Alts...),
		Fix:  s.Fix,
	}
}

// Reset discards the memoized pick but keeps the alternatives.
func (s *Slot[T]) Reset() {
	var zero T
	s.resolved = false
	s.pick = zero
}
