// Package hash computes and compares perceptual fingerprints of image
// regions. Fingerprints are DCT perception hashes (pHash): fixed-length bit
// vectors that stay stable under small brightness and rendering noise while
// diverging quickly for genuinely different content.
package hash

import (
	"errors"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// ErrSizeMismatch is returned when two fingerprints of different bit lengths
// are compared. Mixing hash sizes is a configuration error; it is never
// papered over by truncation.
var ErrSizeMismatch = errors.New("hash: fingerprint size mismatch")

// Fingerprint is a fixed-length perceptual bit vector. The zero value is
// absent (no template / failed computation) and compares as unmatchable.
type Fingerprint struct {
	h *goimagehash.ExtImageHash
}

// FromWords builds a fingerprint directly from raw 64-bit words for the given
// hash size. Words beyond hashSize*hashSize bits are rejected.
func FromWords(words []uint64, hashSize int) (Fingerprint, error) {
	bits := hashSize * hashSize
	if len(words)*64 != bits {
		return Fingerprint{}, fmt.Errorf("hash: need %d words for hash size %d, got %d", bits/64, hashSize, len(words))
	}
	return Fingerprint{h: goimagehash.NewExtImageHash(words, goimagehash.PHash, bits)}, nil
}

// Zero reports whether the fingerprint is absent.
func (f Fingerprint) Zero() bool { return f.h == nil }

// Bits returns the bit length, or 0 for an absent fingerprint.
func (f Fingerprint) Bits() int {
	if f.h == nil {
		return 0
	}
	return f.h.Bits()
}

func (f Fingerprint) String() string {
	if f.h == nil {
		return "<none>"
	}
	return f.h.ToString()
}

// Distance returns the Hamming distance between two fingerprints. It is
// symmetric, zero iff the inputs are bit-identical, and obeys the triangle
// inequality. Comparing fingerprints of different lengths fails with
// ErrSizeMismatch.
func Distance(a, b Fingerprint) (int, error) {
	if a.h == nil || b.h == nil {
		return 0, errors.New("hash: distance of absent fingerprint")
	}
	if a.h.Bits() != b.h.Bits() {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrSizeMismatch, a.h.Bits(), b.h.Bits())
	}
	return a.h.Distance(b.h)
}

// Matches reports whether the Hamming distance between a and b is at most
// threshold (inclusive). The distance is returned alongside for diagnostics.
func Matches(a, b Fingerprint, threshold int) (bool, int, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, 0, err
	}
	return d <= threshold, d, nil
}

// Confidence maps a Hamming distance to [0,1]: 1 for identical, approaching 0
// as distance approaches the full bit length.
func Confidence(distance, bits int) float64 {
	if bits <= 0 {
		return 0
	}
	if distance < 0 {
		return 0
	}
	if distance > bits {
		distance = bits
	}
	return float64(bits-distance) / float64(bits)
}

// ValidSize reports whether n is a supported hash size.
func ValidSize(n int) bool {
	switch n {
	case 8, 16, 32:
		return true
	}
	return false
}

// Engine computes fingerprints at a fixed hash size. All fingerprints in one
// detection session must come from the same engine so their lengths agree.
type Engine struct {
	size int
}

// NewEngine returns an engine for the given hash size (8, 16 or 32).
func NewEngine(hashSize int) (*Engine, error) {
	if !ValidSize(hashSize) {
		return nil, fmt.Errorf("hash: unsupported hash size %d (want 8, 16 or 32)", hashSize)
	}
	return &Engine{size: hashSize}, nil
}

// Size returns the configured hash size.
func (e *Engine) Size() int { return e.size }

// Bits returns the fingerprint bit length (size squared).
func (e *Engine) Bits() int { return e.size * e.size }

// Fingerprint computes the perceptual fingerprint of img. Deterministic: the
// same pixels and hash size always produce the same bits.
func (e *Engine) Fingerprint(img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, errors.New("hash: nil image")
	}
	h, err := goimagehash.ExtPerceptionHash(img, e.size, e.size)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("hash: perception hash: %w", err)
	}
	return Fingerprint{h: h}, nil
}
