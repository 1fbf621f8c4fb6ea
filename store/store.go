// Package store reads meetings, attendees and raw-file records and writes
// generated transcript records and member reference embeddings.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

type FileType string

const (
	FileAudio               FileType = "audio"
	FileTranscriptProvided  FileType = "transcript_provided"
	FileTranscriptGenerated FileType = "transcript_generated"
)

type Meeting struct {
	ID      int64
	GroupID int64
	Date    time.Time
}

// Member is a group member. Embedding is nil until a reference is built.
type Member struct {
	ID                 int64
	Name               string
	Embedding          []float32
	EmbeddingAudioPath string
	EmbeddingUpdatedAt *time.Time
}

type RawFile struct {
	ID            int64
	MeetingID     int64
	FileName      string
	HumanName     string
	Description   string
	Type          FileType
	ProcessedDate *time.Time
}

// Replacement is the outcome of ReplaceGeneratedTranscript.
type Replacement struct {
	Record  RawFile
	Deleted []RawFile
}

// Meetings is the meeting-side read and write contract of the pipeline.
type Meetings interface {
	Meeting(ctx context.Context, id int64) (Meeting, error)
	// AudioFile returns the first audio record of a meeting.
	AudioFile(ctx context.Context, meetingID int64) (RawFile, error)
	// Attendees returns the declared attendees in attendee-list order.
	Attendees(ctx context.Context, meetingID int64) ([]Member, error)
	// ReplaceGeneratedTranscript atomically deletes the meeting's generated
	// transcript records, inserts rec and stamps the audio record as
	// processed at rec.ProcessedDate. Concurrent calls for one meeting are
	// serialised.
	ReplaceGeneratedTranscript(ctx context.Context, rec RawFile, audioID int64) (Replacement, error)
}

// Members reads members and stores their reference embeddings.
type Members interface {
	Member(ctx context.Context, id int64) (Member, error)
	SaveMemberEmbedding(ctx context.Context, id int64, vec []float32, updatedAt time.Time) error
}

type Store interface {
	Meetings
	Members
}
