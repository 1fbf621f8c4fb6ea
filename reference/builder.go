package reference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/embedding"
	"github.com/maastricht-university/meeting-transcriber/filestore"
	"github.com/maastricht-university/meeting-transcriber/store"
)

// WholeEmbedder embeds a full clip in one call.
type WholeEmbedder interface {
	EmbedWhole(ctx context.Context, w audio.Waveform) (embedding.Vector, error)
}

// Builder derives reference embeddings from members' sample clips.
type Builder struct {
	Members  store.Members
	Files    filestore.FileStore
	Embedder WholeEmbedder
	Store    Store
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Build embeds the member's reference clip and saves it, replacing any
// previous reference. It returns ErrMissingAudio when the clip is absent.
func (b *Builder) Build(ctx context.Context, memberID int64) (embedding.Vector, error) {
	m, err := b.Members.Member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.EmbeddingAudioPath == "" {
		return nil, fmt.Errorf("member %d has no reference clip: %w", memberID, ErrMissingAudio)
	}
	p := filestore.ReferencePath(m.EmbeddingAudioPath)

	r, err := b.Files.Read(ctx, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrMissingAudio)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	w, err := audio.Decode(r, p)
	r.Close()
	if err != nil {
		return nil, err
	}

	vec, err := b.Embedder.EmbedWhole(ctx, w.Mono())
	if err != nil {
		return nil, fmt.Errorf("embedding member %d: %w", memberID, err)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	rec := Record{MemberID: memberID, Embedding: vec, Source: m.EmbeddingAudioPath, UpdatedAt: now().UTC()}
	if err := b.Store.SaveReference(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving reference of member %d: %w", memberID, err)
	}
	b.logger().WithFields(logrus.Fields{"member_id": memberID, "source": p}).Info("reference embedding updated")
	return vec, nil
}

// BuildAll builds each member in turn. A failure for one member is logged
// and returned in the map without stopping the others.
func (b *Builder) BuildAll(ctx context.Context, memberIDs []int64) map[int64]error {
	failed := map[int64]error{}
	for _, id := range memberIDs {
		if _, err := b.Build(ctx, id); err != nil {
			b.logger().WithError(err).WithField("member_id", id).Warn("reference embedding not built")
			failed[id] = err
		}
	}
	return failed
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}
