// Package queue carries transcription jobs from the submitting process to
// workers.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Pop once a Local queue is closed and drained.
var ErrClosed = errors.New("queue: closed")

// Job asks a worker to transcribe one meeting.
type Job struct {
	ID         string    `json:"id"`
	MeetingID  int64     `json:"meeting_id"`
	Reprocess  bool      `json:"reprocess"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob returns a job with a fresh id.
func NewJob(meetingID int64, reprocess bool) Job {
	return Job{ID: uuid.NewString(), MeetingID: meetingID, Reprocess: reprocess, EnqueuedAt: time.Now().UTC()}
}

// Queue is a FIFO of jobs. Pop blocks until a job is available or ctx is
// done.
type Queue interface {
	Push(ctx context.Context, j Job) error
	Pop(ctx context.Context) (Job, error)
}
