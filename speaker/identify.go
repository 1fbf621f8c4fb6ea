package speaker

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/embedding"
)

// Embedder turns a clip into a unit-norm embedding.
type Embedder interface {
	Embed(ctx context.Context, w audio.Waveform) (embedding.Vector, error)
}

// Outcome classifies one speaker's identification.
type Outcome string

const (
	Matched   Outcome = "matched"
	Unmatched Outcome = "unmatched"
	// NoSegments means no segment survived selection and quality filtering.
	NoSegments Outcome = "no_segments"
	// Failed means a model call failed for this speaker.
	Failed Outcome = "failed"
)

// Resolution is the result for one diarisation label.
type Resolution struct {
	Label    string
	Outcome  Outcome
	Match    Match // valid when Outcome == Matched
	Segments int   // segments that contributed to the mean
	Err      error // set when Outcome == Failed
}

// Identifier resolves speaker groups against a meeting's candidates.
type Identifier struct {
	Quality  QualityModel
	Embedder Embedder
	Log      logrus.FieldLogger
}

// Identify resolves every group in order. A model failure only affects the
// speaker it happened for; that speaker stays unresolved.
func (id *Identifier) Identify(ctx context.Context, w audio.Waveform, groups []Group, candidates []Candidate, p Params) []Resolution {
	out := make([]Resolution, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			out = append(out, Resolution{Label: g.Label, Outcome: Failed, Err: err})
			continue
		}
		out = append(out, id.resolve(ctx, w, g, candidates, p))
	}
	return out
}

func (id *Identifier) resolve(ctx context.Context, w audio.Waveform, g Group, candidates []Candidate, p Params) Resolution {
	log := id.logger().WithField("speaker", g.Label)
	if len(candidates) == 0 {
		log.Info("no attendee has a reference embedding")
		return Resolution{Label: g.Label, Outcome: Unmatched}
	}
	filter := QualityFilter{Model: id.Quality, Threshold: p.SNRThreshold}

	var vs []embedding.Vector
	for _, t := range SelectSegments(g, p.MinSegmentDuration) {
		seg, ok := w.Crop(t.Start, t.End)
		if !ok {
			continue
		}
		usable, snr, err := filter.IsUsable(ctx, seg)
		if err != nil {
			log.WithError(err).Warn("quality estimate failed")
			return Resolution{Label: g.Label, Outcome: Failed, Err: err}
		}
		if !usable {
			log.WithFields(logrus.Fields{"start": t.Start, "end": t.End, "snr": snr}).Debug("segment rejected")
			continue
		}
		v, err := id.Embedder.Embed(ctx, seg)
		if err != nil {
			log.WithError(err).Warn("embedding failed")
			return Resolution{Label: g.Label, Outcome: Failed, Err: err}
		}
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		log.Info("no valid segments to compare")
		return Resolution{Label: g.Label, Outcome: NoSegments}
	}

	mean, err := embedding.Mean(vs)
	if err != nil {
		return Resolution{Label: g.Label, Outcome: Failed, Err: err}
	}
	m, ok := MatchSpeaker(mean, candidates, p.MatchThreshold)
	if !ok {
		log.WithField("best", m.Similarity).Info("speaker could not be confidently matched")
		return Resolution{Label: g.Label, Outcome: Unmatched, Match: m, Segments: len(vs)}
	}
	log.WithFields(logrus.Fields{"member": m.Candidate.Name, "similarity": m.Similarity}).Info("speaker matched")
	return Resolution{Label: g.Label, Outcome: Matched, Match: m, Segments: len(vs)}
}

func (id *Identifier) logger() logrus.FieldLogger {
	if id.Log == nil {
		return logrus.StandardLogger()
	}
	return id.Log
}

// Names maps matched labels to member names.
func Names(rs []Resolution) map[string]string {
	names := map[string]string{}
	for _, r := range rs {
		if r.Outcome == Matched {
			names[r.Label] = r.Match.Candidate.Name
		}
	}
	return names
}
