package detect

import (
	"log/slog"

	"github.com/xViada/arc-autofire/domain/hash"
)

// Candidate pairs a weapon ID with the fingerprint to match against for the
// slot being resolved.
type Candidate struct {
	WeaponID    string
	Fingerprint hash.Fingerprint
}

// Resolution is the outcome of matching one sample fingerprint against a
// candidate list.
type Resolution struct {
	WeaponID   string
	Distance   int
	Confidence float64
	Matched    bool
}

// Resolve matches a sample fingerprint against candidates and returns the
// best match. A candidate wins only with a strictly smaller distance than the
// current best, so on equal distances the earlier candidate keeps the match;
// candidates iterate in configuration declaration order. A candidate whose
// fingerprint length disagrees with the sample is a configuration fault: it
// is logged as an error and skipped, never silently compared.
func Resolve(sample hash.Fingerprint, cands []Candidate, threshold int, minConfidence float64, logger *slog.Logger) Resolution {
	best := Resolution{Distance: sample.Bits() + 1}
	for _, c := range cands {
		ok, d, err := hash.Matches(sample, c.Fingerprint, threshold)
		if err != nil {
			logger.Error("candidate fingerprint incomparable",
				"weapon", c.WeaponID,
				"sample_bits", sample.Bits(),
				"candidate_bits", c.Fingerprint.Bits(),
				"error", err)
			continue
		}
		if !ok || d >= best.Distance {
			continue
		}
		conf := hash.Confidence(d, sample.Bits())
		if conf < minConfidence {
			continue
		}
		best = Resolution{WeaponID: c.WeaponID, Distance: d, Confidence: conf, Matched: true}
	}
	if !best.Matched {
		return Resolution{}
	}
	return best
}
