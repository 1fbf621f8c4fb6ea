package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Store. Attendee order is insertion order.
type Memory struct {
	mu        sync.Mutex
	meetings  map[int64]Meeting
	members   map[int64]Member
	attendees map[int64][]int64
	files     []RawFile
	nextID    int64

	// Replacements counts successful ReplaceGeneratedTranscript calls.
	Replacements int
}

func NewMemory() *Memory {
	return &Memory{
		meetings:  map[int64]Meeting{},
		members:   map[int64]Member{},
		attendees: map[int64][]int64{},
	}
}

func (s *Memory) AddMeeting(m Meeting, attendeeIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[m.ID] = m
	s.attendees[m.ID] = append([]int64(nil), attendeeIDs...)
}

func (s *Memory) AddMember(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Embedding = slices.Clone(m.Embedding)
	s.members[m.ID] = m
}

// AddFile stores f and returns it with its assigned id.
func (s *Memory) AddFile(f RawFile) RawFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	f.ID = s.nextID
	s.files = append(s.files, f)
	return f
}

// Files returns the meeting's records of type t in insertion order.
func (s *Memory) Files(meetingID int64, t FileType) []RawFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []RawFile
	for _, f := range s.files {
		if f.MeetingID == meetingID && f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func (s *Memory) Meeting(_ context.Context, id int64) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return Meeting{}, fmt.Errorf("meeting %d: %w", id, ErrNotFound)
	}
	return m, nil
}

func (s *Memory) AudioFile(_ context.Context, meetingID int64) (RawFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.MeetingID == meetingID && f.Type == FileAudio {
			return f, nil
		}
	}
	return RawFile{}, fmt.Errorf("audio file for meeting %d: %w", meetingID, ErrNotFound)
}

func (s *Memory) Attendees(_ context.Context, meetingID int64) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Member
	for _, id := range s.attendees[meetingID] {
		if m, ok := s.members[id]; ok {
			m.Embedding = slices.Clone(m.Embedding)
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memory) Member(_ context.Context, id int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return Member{}, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	m.Embedding = slices.Clone(m.Embedding)
	return m, nil
}

func (s *Memory) SaveMemberEmbedding(_ context.Context, id int64, vec []float32, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	m.Embedding = slices.Clone(vec)
	m.EmbeddingUpdatedAt = &updatedAt
	s.members[id] = m
	return nil
}

func (s *Memory) ReplaceGeneratedTranscript(_ context.Context, rec RawFile, audioID int64) (Replacement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	audio := slices.IndexFunc(s.files, func(f RawFile) bool { return f.ID == audioID })
	if audio < 0 {
		return Replacement{}, fmt.Errorf("audio file %d: %w", audioID, ErrNotFound)
	}

	var res Replacement
	kept := s.files[:0:0]
	for _, f := range s.files {
		if f.MeetingID == rec.MeetingID && f.Type == FileTranscriptGenerated {
			res.Deleted = append(res.Deleted, f)
			continue
		}
		kept = append(kept, f)
	}

	s.nextID++
	rec.ID = s.nextID
	rec.Type = FileTranscriptGenerated
	kept = append(kept, rec)
	for i := range kept {
		if kept[i].ID == audioID {
			kept[i].ProcessedDate = rec.ProcessedDate
		}
	}
	s.files = kept
	s.Replacements++
	res.Record = rec
	return res, nil
}
