package genotype

import (
	"math/rand"
	"strings"
)

// Bits is an immutable bit string stored as '0'/'1' characters. The zero
// value is the empty string. Bits values are comparable and usable as map
// keys.
type Bits string

// BitsOf builds a Bits value from booleans.
func BitsOf(values ...bool) Bits {
	var b strings.Builder
	b.Grow(len(values))
	for _, v := range values {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return Bits(b.String())
}

// RandomBits draws n independent fair bits.
func RandomBits(rng *rand.Rand, n int) Bits {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	for i := range buf {
		if rng.Intn(2) == 1 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return Bits(buf)
}

func (b Bits) Len() int {
	return len(b)
}

func (b Bits) At(i int) bool {
	return b[i] == '1'
}

// Flip returns a copy with bit i inverted.
func (b Bits) Flip(i int) Bits {
	buf := []byte(b)
	if buf[i] == '1' {
		buf[i] = '0'
	} else {
		buf[i] = '1'
	}
	return Bits(buf)
}

func (b Bits) Append(v bool) Bits {
	if v {
		return b + "1"
	}
	return b + "0"
}

// Truncate keeps the first n bits.
func (b Bits) Truncate(n int) Bits {
	if n >= len(b) {
		return b
	}
	if n < 0 {
		n = 0
	}
	return b[:n]
}

// Count returns the number of set bits.
func (b Bits) Count() int {
	return strings.Count(string(b), "1")
}

func (b Bits) Bools() []bool {
	out := make([]bool, len(b))
	for i := range out {
		out[i] = b[i] == '1'
	}
	return out
}

func (b Bits) String() string {
	return string(b)
}
