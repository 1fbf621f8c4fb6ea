// Package speaker resolves anonymous diarisation labels to meeting
// attendees: it groups turns by label, picks the segments worth embedding,
// drops noisy ones and matches the averaged voice embedding against the
// attendees' references.
package speaker

const (
	DefaultSNRThreshold       = 5.0
	DefaultMinSegmentDuration = 5.0 // seconds
	DefaultMatchThreshold     = 0.7
)

// Params are the per-run identification thresholds.
type Params struct {
	// SNRThreshold is the minimum mean SNR (dB) of voiced frames.
	SNRThreshold float64
	// MinSegmentDuration is the shortest turn, in seconds, that is embedded
	// when a speaker has longer evidence available.
	MinSegmentDuration float64
	// MatchThreshold is the minimum cosine similarity for a match.
	MatchThreshold float64
}

func DefaultParams() Params {
	return Params{
		SNRThreshold:       DefaultSNRThreshold,
		MinSegmentDuration: DefaultMinSegmentDuration,
		MatchThreshold:     DefaultMatchThreshold,
	}
}
