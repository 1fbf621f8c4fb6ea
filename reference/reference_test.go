package reference

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/embedding"
	"github.com/maastricht-university/meeting-transcriber/filestore"
	"github.com/maastricht-university/meeting-transcriber/store"
)

type fakeEmbedder struct {
	out   embedding.Vector
	calls int
}

func (f *fakeEmbedder) EmbedWhole(context.Context, audio.Waveform) (embedding.Vector, error) {
	f.calls++
	return f.out, nil
}

func writeClip(t *testing.T, fs filestore.FileStore, p string) {
	t.Helper()
	w := audio.Waveform{SampleRate: 16000, Channels: [][]float32{make([]float32, 16000)}}
	for i := range w.Channels[0] {
		w.Channels[0][i] = 0.25
	}
	require.NoError(t, filestore.WriteFile(context.Background(), fs, p, func(dst io.Writer) error {
		return audio.EncodeWAV(dst, w)
	}))
}

func newBuilder(t *testing.T) (*Builder, *store.Memory, *fakeEmbedder) {
	t.Helper()
	fs, err := filestore.NewLocal(t.TempDir())
	require.NoError(t, err)
	mem := store.NewMemory()
	emb := &fakeEmbedder{out: embedding.Vector{0.6, 0.8}}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Builder{
		Members:  mem,
		Files:    fs,
		Embedder: emb,
		Store:    DB{Members: mem},
		Now:      func() time.Time { return fixed },
	}, mem, emb
}

func TestBuildSavesReference(t *testing.T) {
	b, mem, _ := newBuilder(t)
	mem.AddMember(store.Member{ID: 7, Name: "Alice", EmbeddingAudioPath: "7.wav"})
	writeClip(t, b.Files, filestore.ReferencePath("7.wav"))
	ctx := context.Background()

	vec, err := b.Build(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, embedding.Vector{0.6, 0.8}, vec)

	m, err := mem.Member(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, m.Embedding)
	require.NotNil(t, m.EmbeddingUpdatedAt)
	assert.Equal(t, 2025, m.EmbeddingUpdatedAt.Year())
}

func TestBuildOverwrites(t *testing.T) {
	b, mem, emb := newBuilder(t)
	mem.AddMember(store.Member{ID: 7, EmbeddingAudioPath: "7.wav"})
	writeClip(t, b.Files, filestore.ReferencePath("7.wav"))
	ctx := context.Background()

	_, err := b.Build(ctx, 7)
	require.NoError(t, err)
	emb.out = embedding.Vector{1, 0}
	_, err = b.Build(ctx, 7)
	require.NoError(t, err)

	r, err := b.Store.Reference(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, r.Embedding)
}

func TestBuildMissingAudio(t *testing.T) {
	b, mem, emb := newBuilder(t)
	mem.AddMember(store.Member{ID: 7, EmbeddingAudioPath: "7.wav"})
	mem.AddMember(store.Member{ID: 8})

	_, err := b.Build(context.Background(), 7)
	assert.ErrorIs(t, err, ErrMissingAudio)
	_, err = b.Build(context.Background(), 8)
	assert.ErrorIs(t, err, ErrMissingAudio)
	_, err = b.Build(context.Background(), 9)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, emb.calls)
}

func TestBuildAllContinuesPastFailures(t *testing.T) {
	b, mem, _ := newBuilder(t)
	mem.AddMember(store.Member{ID: 1, EmbeddingAudioPath: "1.wav"})
	mem.AddMember(store.Member{ID: 2, EmbeddingAudioPath: "2.wav"})
	writeClip(t, b.Files, filestore.ReferencePath("2.wav"))

	failed := b.BuildAll(context.Background(), []int64{1, 2})
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[1], ErrMissingAudio)

	_, err := b.Store.Reference(context.Background(), 2)
	assert.NoError(t, err)
}

func TestKVRoundTrip(t *testing.T) {
	kv, err := OpenKV("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	ctx := context.Background()

	_, err = kv.Reference(ctx, 1)
	assert.ErrorIs(t, err, ErrNoReference)

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 1, Embedding: []float32{1, 0}, UpdatedAt: at}))
	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 1, Embedding: []float32{0, 1}, UpdatedAt: at}))

	r, err := kv.Reference(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, r.Embedding)
	assert.True(t, r.UpdatedAt.Equal(at))
}

func TestCandidatesSkipsMissing(t *testing.T) {
	kv, err := OpenKV("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	ctx := context.Background()
	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 2, Embedding: []float32{3, 4}}))
	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 3, Embedding: []float32{0, 0}}))

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	attendees := []store.Member{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
	cs := Candidates(ctx, kv, attendees, 2, log)

	require.Len(t, cs, 1)
	assert.Equal(t, "B", cs[0].Name)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, cs[0].Embedding(), 1e-6)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestCandidatesSkipsWrongDimension(t *testing.T) {
	kv, err := OpenKV("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	ctx := context.Background()

	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 1, Embedding: []float32{1, 0, 0}}))
	require.NoError(t, kv.SaveReference(ctx, Record{MemberID: 2, Embedding: []float32{0, 1}}))

	log, hook := test.NewNullLogger()
	attendees := []store.Member{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}

	cs := Candidates(ctx, kv, attendees, 2, log)
	require.Len(t, cs, 1)
	assert.Equal(t, "B", cs[0].Name)
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, int64(1), entry.Data["member_id"])
	assert.Equal(t, 3, entry.Data["dimension"])

	assert.Len(t, Candidates(ctx, kv, attendees, 0, log), 2)
}
