package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/meeting-transcriber/orchestrator"
	"github.com/maastricht-university/meeting-transcriber/queue"
	"github.com/maastricht-university/meeting-transcriber/store"
)

const popBackoff = time.Second

// Runner executes one meeting run.
type Runner interface {
	Run(ctx context.Context, meetingID int64) (*orchestrator.Result, error)
}

// Pool pops jobs and runs them. A job's failure, including a panic, is
// logged and never stops the pool.
type Pool struct {
	Queue  queue.Queue
	Runner Runner
	// Meetings, when set, re-checks the processed guard for jobs that did not
	// ask for reprocessing, so duplicate submissions run once.
	Meetings store.Meetings
	Workers  int
	Log      logrus.FieldLogger
}

// Run blocks until ctx is done or the queue is closed.
func (p *Pool) Run(ctx context.Context) error {
	n := max(p.Workers, 1)
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	var g errgroup.Group
	for i := 0; i < n; i++ {
		wlog := log.WithField("worker", i)
		g.Go(func() error {
			p.loop(ctx, wlog)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, log logrus.FieldLogger) {
	for {
		j, err := p.Queue.Pop(ctx)
		if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.WithError(err).Error("pop job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(popBackoff):
			}
			continue
		}
		p.handle(ctx, log, j)
	}
}

func (p *Pool) handle(ctx context.Context, log logrus.FieldLogger, j queue.Job) {
	log = log.WithFields(logrus.Fields{"job_id": j.ID, "meeting_id": j.MeetingID})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("run panicked: %v", r)
		}
	}()
	if p.Meetings != nil && !j.Reprocess {
		if _, err := Check(ctx, p.Meetings, j.MeetingID, false); err != nil {
			log.WithError(err).Info("job dropped")
			return
		}
	}
	res, err := p.Runner.Run(ctx, j.MeetingID)
	switch {
	case errors.Is(err, orchestrator.ErrPrecondition):
		log.WithError(err).Warn("job skipped")
	case err != nil:
		log.WithError(err).Error("job failed")
	default:
		log.WithFields(logrus.Fields{"file": res.Record.FileName, "entries": res.Entries}).Info("job done")
	}
}
