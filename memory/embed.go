package memory

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Embedder maps text to a fixed-size vector.
type Embedder interface {
	Embed(text string) []float64
}

const defaultDim = 256

// HashEmbedder is a bag-of-words feature hashing embedder. Tokens are
// lowercased letter and digit runs; the sign of each feature comes from a
// second hash bit to reduce collision bias.
type HashEmbedder struct {
	Dim int
}

func NewHashEmbedder(dim int) HashEmbedder {
	if dim <= 0 {
		dim = defaultDim
	}
	return HashEmbedder{Dim: dim}
}

// Embed returns a vector of length Dim, or of the default length when Dim is
// not positive.
func (e HashEmbedder) Embed(text string) []float64 {
	dim := e.Dim
	if dim <= 0 {
		dim = defaultDim
	}
	vector := make([]float64, dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1
		}
		vector[sum%uint64(dim)] += sign
	}
	return vector
}
