package shortid

import (
	"math/rand/v2"
)

// Alphabet is the fixed id alphabet: URL-safe, no padding characters.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultLength gives 62^6 ≈ 5.7e10 possible ids.
const DefaultLength = 6

// Source yields uniform random ints. Injected so tests can rig collisions.
type Source interface {
	IntN(n int) int
}

type systemSource struct{}

func (systemSource) IntN(n int) int { return rand.IntN(n) }

// SystemSource returns the process-wide PRNG (ChaCha8 seeded at startup).
func SystemSource() Source { return systemSource{} }

// Generator draws fixed-length ids from Alphabet.
type Generator struct {
	src    Source
	length int
}

func NewGenerator(src Source, length int) *Generator {
	if src == nil {
		src = SystemSource()
	}
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{src: src, length: length}
}

// Next returns a fresh id. Uniqueness is the caller's concern.
func (g *Generator) Next() string {
	buf := make([]byte, g.length)
	for i := range buf {
		buf[i] = Alphabet[g.src.IntN(len(Alphabet))]
	}
	return string(buf)
}
