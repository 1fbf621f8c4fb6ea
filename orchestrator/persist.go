package orchestrator

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/filestore"
	"github.com/maastricht-university/meeting-transcriber/lease"
	"github.com/maastricht-university/meeting-transcriber/store"
)

const (
	transcriptDescription = "Auto-generated transcript"
	leasePoll             = 250 * time.Millisecond
)

// artifactName returns the human name and the stored name of the
// transcript for an audio record.
func artifactName(id string, audio store.RawFile) (human, stored string) {
	base := audio.HumanName
	if base == "" {
		base = audio.FileName
	}
	stem := strings.TrimSuffix(filepath.Base(base), filepath.Ext(base))
	human = stem + ".vtt"
	return human, strings.ReplaceAll(id, "-", "") + "_" + human
}

// persist writes the transcript and replaces the meeting's generated
// transcript record while holding the meeting lease. If the record cannot
// be written the new file is removed again. Earlier transcript files are
// left on storage.
func (p *Pipeline) persist(ctx context.Context, in inputs, vtt []byte) (*Result, error) {
	ttl := time.Duration(p.conf.Lease.TTLSec) * time.Second
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, ttl)
	held, err := lease.Wait(waitCtx, p.deps.Locker, lease.MeetingKey(in.meeting.ID), ttl, leasePoll)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("meeting lease: %w", err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			p.deps.Log.WithError(err).WithField("meeting_id", in.meeting.ID).Warn("releasing meeting lease")
		}
	}()

	human, stored := artifactName(p.newID(), in.audio)
	path := filestore.MeetingPath(in.meeting.GroupID, in.meeting.ID, stored)
	if err := filestore.WriteFile(ctx, p.deps.Files, path, func(w io.Writer) error {
		_, err := w.Write(vtt)
		return err
	}); err != nil {
		return nil, err
	}

	now := p.now()
	rec := store.RawFile{
		MeetingID:     in.meeting.ID,
		FileName:      stored,
		HumanName:     human,
		Description:   transcriptDescription,
		Type:          store.FileTranscriptGenerated,
		ProcessedDate: &now,
	}
	res, err := p.deps.Meetings.ReplaceGeneratedTranscript(ctx, rec, in.audio.ID)
	if err != nil {
		if derr := p.deps.Files.Delete(context.WithoutCancel(ctx), path); derr != nil {
			p.deps.Log.WithError(derr).WithField("path", path).Warn("removing orphaned transcript")
		}
		return nil, err
	}
	for _, old := range res.Deleted {
		p.deps.Log.WithFields(logrus.Fields{"meeting_id": in.meeting.ID, "file": old.FileName}).
			Info("replaced previous generated transcript")
	}
	return &Result{Record: res.Record, Path: path, Replaced: res.Deleted}, nil
}
