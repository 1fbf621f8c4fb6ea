package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/caption"
	"github.com/maastricht-university/meeting-transcriber/config"
	"github.com/maastricht-university/meeting-transcriber/filestore"
	"github.com/maastricht-university/meeting-transcriber/lease"
	"github.com/maastricht-university/meeting-transcriber/observability"
	"github.com/maastricht-university/meeting-transcriber/reference"
	"github.com/maastricht-university/meeting-transcriber/speaker"
	"github.com/maastricht-university/meeting-transcriber/store"
)

// Diarizer splits audio into speaker turns given an expected speaker count.
type Diarizer interface {
	Diarize(ctx context.Context, w audio.Waveform, numSpeakers int) ([]speaker.Turn, error)
}

// Deps are the collaborators of a Pipeline. Metrics and Tracer are optional.
type Deps struct {
	Meetings   store.Meetings
	References reference.Store
	Files      filestore.FileStore
	Diarizer   Diarizer
	Identifier *speaker.Identifier
	Merger     *caption.Merger
	Locker     lease.Locker
	Metrics    *observability.Metrics
	Tracer     *observability.Tracer
	Log        logrus.FieldLogger
}

type Pipeline struct {
	conf  *config.Root
	deps  Deps
	now   func() time.Time
	newID func() string
}

func NewPipeline(c *config.Root, d Deps) *Pipeline {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Tracer == nil {
		d.Tracer = observability.NewTracer()
	}
	return &Pipeline{
		conf:  c,
		deps:  d,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// inputs is what the preconditions establish. It is the only data the
// stages before Persisted read from the stores.
type inputs struct {
	meeting    store.Meeting
	audio      store.RawFile
	audioPath  string
	attendees  []store.Member
	candidates []speaker.Candidate
}

// Run transcribes one meeting. Failed preconditions return an error
// wrapping ErrPrecondition; fatal failures return a *StageError. Neither
// leaves anything persisted.
func (p *Pipeline) Run(ctx context.Context, meetingID int64) (*Result, error) {
	log := p.deps.Log.WithField("meeting_id", meetingID)
	ctx, span := p.deps.Tracer.StartRun(ctx, meetingID)

	in, err := p.check(ctx, meetingID, log)
	if err != nil {
		observability.End(span, err)
		if errors.Is(err, ErrPrecondition) {
			log.WithError(err).Warn("transcription skipped")
			p.deps.Metrics.RunFinished(observability.OutcomeNoop)
		} else {
			log.WithError(err).Error("transcription failed")
			p.deps.Metrics.RunFinished(observability.OutcomeFailed)
		}
		return nil, err
	}

	r := &run{p: p, log: log}
	res, err := r.execute(ctx, in)
	observability.End(span, err)
	if err != nil {
		log.WithError(err).Error("transcription failed")
		p.deps.Metrics.RunFinished(observability.OutcomeFailed)
		return nil, err
	}
	log.WithFields(logrus.Fields{"file": res.Record.FileName, "entries": res.Entries}).
		Info("transcription complete")
	p.deps.Metrics.RunFinished(observability.OutcomePersisted)
	return res, nil
}

// check runs the preconditions in order and stops at the first failure,
// then snapshots the attendees' references as match candidates.
func (p *Pipeline) check(ctx context.Context, meetingID int64, log logrus.FieldLogger) (inputs, error) {
	var in inputs
	var err error

	if in.meeting, err = p.deps.Meetings.Meeting(ctx, meetingID); err != nil {
		return in, precondition(err, "meeting %d not found", meetingID)
	}
	if in.audio, err = p.deps.Meetings.AudioFile(ctx, meetingID); err != nil {
		return in, precondition(err, "no audio file for meeting %d", meetingID)
	}
	in.audioPath = filestore.MeetingPath(in.meeting.GroupID, meetingID, in.audio.FileName)
	ok, err := p.deps.Files.Exists(ctx, in.audioPath)
	if err != nil {
		return in, fmt.Errorf("checking %s: %w", in.audioPath, err)
	}
	if !ok {
		return in, fmt.Errorf("%w: audio file %s not found", ErrPrecondition, in.audioPath)
	}
	if in.attendees, err = p.deps.Meetings.Attendees(ctx, meetingID); err != nil {
		return in, fmt.Errorf("loading attendees: %w", err)
	}
	if len(in.attendees) == 0 {
		return in, fmt.Errorf("%w: meeting %d has no attendees", ErrPrecondition, meetingID)
	}
	in.candidates = reference.Candidates(ctx, p.deps.References, in.attendees, p.conf.Embedding.Dimension, log)
	return in, nil
}

func precondition(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
	}
	return err
}

// run holds the state of one execution.
type run struct {
	p     *Pipeline
	log   logrus.FieldLogger
	state State
}

func (r *run) advance(next State) error {
	if next != r.state+1 {
		return fmt.Errorf("invalid transition %s -> %s", r.state, next)
	}
	r.state = next
	return nil
}

// step runs fn and moves to next when it succeeds.
func (r *run) step(ctx context.Context, next State, fn func(ctx context.Context) error) error {
	ctx, span := r.p.deps.Tracer.StartState(ctx, next.String())
	start := time.Now()
	err := fn(ctx)
	if err == nil {
		err = r.advance(next)
	}
	observability.End(span, err)
	if err != nil {
		return &StageError{State: next, Err: err}
	}
	elapsed := time.Since(start)
	r.p.deps.Metrics.StageDone(next.String(), elapsed)
	r.log.WithFields(logrus.Fields{"stage": next.String(), "elapsed": elapsed.Round(time.Millisecond)}).Info("stage done")
	return nil
}

func (r *run) execute(ctx context.Context, in inputs) (*Result, error) {
	var (
		wave      audio.Waveform
		turns     []speaker.Turn
		groups    []speaker.Group
		resolved  []speaker.Resolution
		entries   []caption.Entry
		vtt       bytes.Buffer
		persisted *Result
	)
	deps := r.p.deps

	steps := []struct {
		state State
		fn    func(ctx context.Context) error
	}{
		{LoadedAudio, func(ctx context.Context) (err error) {
			wave, err = loadAudio(ctx, deps.Files, in.audioPath)
			return err
		}},
		{Diarised, func(ctx context.Context) (err error) {
			turns, err = deps.Diarizer.Diarize(ctx, wave, len(in.attendees))
			return err
		}},
		{SpeakerGroupsBuilt, func(context.Context) error {
			groups = speaker.BuildGroups(turns)
			r.log.WithFields(logrus.Fields{"turns": len(turns), "speakers": len(groups)}).Debug("speaker groups built")
			return nil
		}},
		{SpeakersMatched, func(ctx context.Context) error {
			resolved = deps.Identifier.Identify(ctx, wave, groups, in.candidates, r.p.conf.MatchParams())
			for _, res := range resolved {
				deps.Metrics.Speaker(string(res.Outcome))
			}
			turns = speaker.Rename(turns, speaker.Names(resolved))
			return nil
		}},
		{Transcribed, func(ctx context.Context) (err error) {
			entries, err = deps.Merger.Merge(ctx, wave, turns)
			return err
		}},
		{Serialised, func(context.Context) error {
			return caption.WriteVTT(&vtt, entries)
		}},
		{Persisted, func(ctx context.Context) (err error) {
			persisted, err = r.p.persist(ctx, in, vtt.Bytes())
			return err
		}},
	}
	for _, s := range steps {
		if err := r.step(ctx, s.state, s.fn); err != nil {
			return nil, err
		}
	}
	persisted.Speakers = resolved
	persisted.Entries = len(entries)
	return persisted, nil
}

func loadAudio(ctx context.Context, fs filestore.FileStore, path string) (audio.Waveform, error) {
	rc, err := fs.Read(ctx, path)
	if err != nil {
		return audio.Waveform{}, err
	}
	defer rc.Close()
	return audio.Decode(rc, path)
}
