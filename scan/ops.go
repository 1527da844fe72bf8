package scan

// Integer is the subset of Element that supports bitwise operators.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~uint8 | ~uint16 | ~uint32
}

// Plus returns a + b.
func Plus[T Element](a, b T) T { return a + b }

// Max returns the larger of a and b.
func Max[T Element](a, b T) T { return max(a, b) }

// Min returns the smaller of a and b.
func Min[T Element](a, b T) T { return min(a, b) }

// Or returns a | b.
func Or[T Integer](a, b T) T { return a | b }
