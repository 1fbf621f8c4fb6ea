package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNotFound(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.Meeting(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AudioFile(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Member(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SaveMemberEmbedding(ctx, 1, []float32{1}, time.Now()), ErrNotFound)
}

func TestMemoryAttendeeOrder(t *testing.T) {
	s := NewMemory()
	s.AddMember(Member{ID: 2, Name: "Bob"})
	s.AddMember(Member{ID: 1, Name: "Alice"})
	s.AddMeeting(Meeting{ID: 10, GroupID: 1}, 2, 1)

	got, err := s.Attendees(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bob", got[0].Name)
	assert.Equal(t, "Alice", got[1].Name)
}

func TestMemoryReplaceGeneratedTranscript(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	s.AddMeeting(Meeting{ID: 10})
	audio := s.AddFile(RawFile{MeetingID: 10, FileName: "a.wav", Type: FileAudio})
	s.AddFile(RawFile{MeetingID: 10, FileName: "given.vtt", Type: FileTranscriptProvided})
	old := s.AddFile(RawFile{MeetingID: 10, FileName: "old.vtt", Type: FileTranscriptGenerated})
	s.AddFile(RawFile{MeetingID: 11, FileName: "other.vtt", Type: FileTranscriptGenerated})

	now := time.Now()
	res, err := s.ReplaceGeneratedTranscript(ctx, RawFile{MeetingID: 10, FileName: "new.vtt", ProcessedDate: &now}, audio.ID)
	require.NoError(t, err)

	require.Len(t, res.Deleted, 1)
	assert.Equal(t, old.ID, res.Deleted[0].ID)
	gen := s.Files(10, FileTranscriptGenerated)
	require.Len(t, gen, 1)
	assert.Equal(t, "new.vtt", gen[0].FileName)
	assert.Len(t, s.Files(10, FileTranscriptProvided), 1)
	assert.Len(t, s.Files(11, FileTranscriptGenerated), 1)

	a, err := s.AudioFile(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, a.ProcessedDate)
	assert.True(t, a.ProcessedDate.Equal(now))
}

func TestMemoryConcurrentReplaceKeepsOne(t *testing.T) {
	s := NewMemory()
	s.AddMeeting(Meeting{ID: 1})
	audio := s.AddFile(RawFile{MeetingID: 1, Type: FileAudio})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ReplaceGeneratedTranscript(context.Background(), RawFile{MeetingID: 1}, audio.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, s.Files(1, FileTranscriptGenerated), 1)
	assert.Equal(t, 16, s.Replacements)
}
