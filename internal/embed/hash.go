package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider produces deterministic embeddings without a model server.
//
// Each lowercase word is hashed into one of the vector's buckets (feature
// hashing), so texts sharing words land close together. Texts without any
// word fall back to a vector derived from the sha256 of the text. It is
// meant for offline use and tests, not for semantic quality.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hash provider producing vectors of the given length.
func NewHashProvider(dimensions int) *HashProvider {
	return &HashProvider{dimensions: dimensions}
}

func (p *HashProvider) Initialize(ctx context.Context) error {
	return nil
}

func (p *HashProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = p.embedOne(text)
	}
	return embeddings, nil
}

func (p *HashProvider) embedOne(text string) []float32 {
	v := make([]float32, p.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimensions))
		if sum&(1<<63) != 0 {
			v[idx] -= 1
		} else {
			v[idx] += 1
		}
	}

	if len(words) == 0 || isZero(v) {
		hash := sha256.Sum256([]byte(text))
		for j := range v {
			offset := (j * 4) % (len(hash) - 3)
			val := binary.BigEndian.Uint32(hash[offset : offset+4])
			v[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
		}
	}

	normalize(v)
	return v
}

func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

func (p *HashProvider) Check(ctx context.Context) (Health, error) {
	return Health{Reachable: true, Model: "hash", ModelAvailable: true}, nil
}

func (p *HashProvider) Close() error {
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
