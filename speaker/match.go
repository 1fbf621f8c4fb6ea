package speaker

import (
	"github.com/maastricht-university/meeting-transcriber/embedding"
)

// Candidate is an attendee with a reference embedding. It is a value: the
// embedding is copied on construction and never mutated.
type Candidate struct {
	ID        int64
	Name      string
	embedding embedding.Vector
}

// NewCandidate returns a candidate holding a normalised copy of ref.
func NewCandidate(id int64, name string, ref []float32) (Candidate, error) {
	v, err := embedding.Normalize(ref)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{ID: id, Name: name, embedding: v}, nil
}

// Embedding returns a copy of the reference embedding.
func (c Candidate) Embedding() embedding.Vector {
	return append(embedding.Vector(nil), c.embedding...)
}

// Match is a resolved identity and its cosine similarity.
type Match struct {
	Candidate  Candidate
	Similarity float64
}

// Best returns the candidate most similar to mean, whatever the score.
// Ties keep the earliest candidate. Candidates whose dimension differs
// from mean are skipped. ok is false when nothing was comparable.
func Best(mean embedding.Vector, candidates []Candidate) (best Match, ok bool) {
	for _, c := range candidates {
		sim, err := embedding.Dot(mean, c.embedding)
		if err != nil {
			continue
		}
		if !ok || sim > best.Similarity {
			best, ok = Match{Candidate: c, Similarity: sim}, true
		}
	}
	return best, ok
}

// MatchSpeaker returns the best candidate when its similarity is at least
// threshold. Below threshold there is no match.
func MatchSpeaker(mean embedding.Vector, candidates []Candidate, threshold float64) (Match, bool) {
	best, ok := Best(mean, candidates)
	if !ok || best.Similarity < threshold {
		return best, false
	}
	return best, true
}
