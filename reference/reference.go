// Package reference builds and stores member reference embeddings: one
// unit-norm voice vector per member, derived from the member's sample clip
// and regenerated in place whenever the clip changes.
package reference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/speaker"
	"github.com/maastricht-university/meeting-transcriber/store"
)

var (
	// ErrMissingAudio means the member has no readable reference clip.
	ErrMissingAudio = errors.New("reference: missing audio")

	// ErrNoReference means no embedding has been built for the member.
	ErrNoReference = errors.New("reference: no embedding")
)

// Record is a stored reference embedding.
type Record struct {
	MemberID  int64     `msgpack:"member_id"`
	Embedding []float32 `msgpack:"embedding"`
	Source    string    `msgpack:"source"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

// Store persists references. Save overwrites any previous record.
type Store interface {
	Reference(ctx context.Context, memberID int64) (Record, error)
	SaveReference(ctx context.Context, r Record) error
}

// DB keeps references on the member rows of the relational store.
type DB struct {
	Members store.Members
}

func (d DB) Reference(ctx context.Context, memberID int64) (Record, error) {
	m, err := d.Members.Member(ctx, memberID)
	if err != nil {
		return Record{}, err
	}
	if len(m.Embedding) == 0 {
		return Record{}, fmt.Errorf("member %d: %w", memberID, ErrNoReference)
	}
	r := Record{MemberID: m.ID, Embedding: m.Embedding, Source: m.EmbeddingAudioPath}
	if m.EmbeddingUpdatedAt != nil {
		r.UpdatedAt = *m.EmbeddingUpdatedAt
	}
	return r, nil
}

func (d DB) SaveReference(ctx context.Context, r Record) error {
	return d.Members.SaveMemberEmbedding(ctx, r.MemberID, r.Embedding, r.UpdatedAt)
}

// Candidates returns match candidates for the attendees that have a usable
// reference, in attendee order. Attendees without one, or whose reference
// is not dim-dimensional, are logged and skipped. dim <= 0 accepts any
// dimension.
func Candidates(ctx context.Context, s Store, attendees []store.Member, dim int, log logrus.FieldLogger) []speaker.Candidate {
	out := make([]speaker.Candidate, 0, len(attendees))
	for _, a := range attendees {
		l := log.WithFields(logrus.Fields{"member_id": a.ID, "member": a.Name})
		r, err := s.Reference(ctx, a.ID)
		if err != nil {
			if errors.Is(err, ErrNoReference) || errors.Is(err, store.ErrNotFound) {
				l.Info("attendee has no reference embedding")
			} else {
				l.WithError(err).Warn("loading reference embedding failed")
			}
			continue
		}
		if dim > 0 && len(r.Embedding) != dim {
			l.WithFields(logrus.Fields{"dimension": len(r.Embedding), "want": dim}).
				Warn("reference embedding has the wrong dimension, rebuild it")
			continue
		}
		c, err := speaker.NewCandidate(a.ID, a.Name, r.Embedding)
		if err != nil {
			l.WithError(err).Warn("unusable reference embedding")
			continue
		}
		out = append(out, c)
	}
	return out
}
