// Package scheduler accepts transcription requests, guards against
// reprocessing meetings that already have a transcript, and runs queued
// jobs on a pool of workers.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/queue"
	"github.com/maastricht-university/meeting-transcriber/store"
)

var (
	// ErrNoAudio rejects a request for a meeting without an audio record.
	ErrNoAudio = errors.New("meeting has no audio file")

	// ErrAlreadyProcessed rejects a request for a processed meeting unless
	// reprocessing was asked for.
	ErrAlreadyProcessed = errors.New("meeting audio already processed")
)

// Ack is returned for an accepted request.
type Ack struct {
	MeetingID int64  `json:"meeting_id"`
	File      string `json:"file"`
	Reprocess bool   `json:"reprocess"`
	JobID     string `json:"job_id"`
}

// Check returns the meeting's audio record if a run may start.
func Check(ctx context.Context, m store.Meetings, meetingID int64, reprocess bool) (store.RawFile, error) {
	a, err := m.AudioFile(ctx, meetingID)
	if errors.Is(err, store.ErrNotFound) {
		return store.RawFile{}, fmt.Errorf("meeting %d: %w", meetingID, ErrNoAudio)
	}
	if err != nil {
		return store.RawFile{}, err
	}
	if a.ProcessedDate != nil && !reprocess {
		return a, fmt.Errorf("meeting %d processed at %s: %w",
			meetingID, a.ProcessedDate.Format("2006-01-02 15:04:05"), ErrAlreadyProcessed)
	}
	return a, nil
}

// Scheduler enqueues accepted requests. The run itself happens later on a
// worker.
type Scheduler struct {
	Meetings store.Meetings
	Queue    queue.Queue
	Log      logrus.FieldLogger
}

func (s *Scheduler) Submit(ctx context.Context, meetingID int64, reprocess bool) (Ack, error) {
	log := s.logger().WithFields(logrus.Fields{"meeting_id": meetingID, "reprocess": reprocess})
	a, err := Check(ctx, s.Meetings, meetingID, reprocess)
	if err != nil {
		log.WithError(err).Info("transcription request rejected")
		return Ack{}, err
	}
	j := queue.NewJob(meetingID, reprocess)
	if err := s.Queue.Push(ctx, j); err != nil {
		return Ack{}, fmt.Errorf("enqueue meeting %d: %w", meetingID, err)
	}
	log.WithField("job_id", j.ID).Info("transcription queued")
	return Ack{MeetingID: meetingID, File: a.FileName, Reprocess: reprocess, JobID: j.ID}, nil
}

func (s *Scheduler) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
