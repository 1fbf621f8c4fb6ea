package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/caption"
	"github.com/maastricht-university/meeting-transcriber/clients"
	"github.com/maastricht-university/meeting-transcriber/config"
	"github.com/maastricht-university/meeting-transcriber/device"
	"github.com/maastricht-university/meeting-transcriber/embedding"
	"github.com/maastricht-university/meeting-transcriber/filestore"
	"github.com/maastricht-university/meeting-transcriber/lease"
	"github.com/maastricht-university/meeting-transcriber/observability"
	"github.com/maastricht-university/meeting-transcriber/orchestrator"
	"github.com/maastricht-university/meeting-transcriber/queue"
	"github.com/maastricht-university/meeting-transcriber/reference"
	"github.com/maastricht-university/meeting-transcriber/speaker"
	"github.com/maastricht-university/meeting-transcriber/store"
)

// stack holds the process-wide collaborators built from the configuration.
type stack struct {
	conf    *config.Root
	log     *logrus.Logger
	store   *store.Postgres
	refs    reference.Store
	files   filestore.FileStore
	rdb     *redis.Client
	metrics *observability.Metrics
	device  device.Selection
	closers []func() error
}

func newStack(ctx context.Context, conf *config.Root, log *logrus.Logger, reg prometheus.Registerer) (*stack, error) {
	s := &stack{conf: conf, log: log, metrics: observability.NewMetrics(reg)}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	pool, err := store.Connect(ctx, conf.Database.URL, conf.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error { pool.Close(); return nil })
	s.store = store.NewPostgres(pool)

	if s.files, err = filestore.New(conf.Storage); err != nil {
		return nil, err
	}

	switch conf.References.Backend {
	case "", "database":
		s.refs = reference.DB{Members: s.store}
	case "badger":
		kv, err := reference.OpenKV(conf.References.Dir)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, kv.Close)
		s.refs = kv
	default:
		return nil, fmt.Errorf("unknown references backend %q", conf.References.Backend)
	}

	if conf.Lease.Backend == "redis" || conf.Queue.Backend == "redis" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		s.closers = append(s.closers, s.rdb.Close)
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", conf.Redis.Addr, err)
		}
	}

	s.device = device.Policy{
		Accelerator:     conf.Device.Accelerator,
		Capability:      conf.Device.Capability,
		SupportedArches: conf.Device.SupportedArches,
		RetryOnFallback: conf.Device.RetryOnFallback,
	}.Select()
	log.WithField("device", s.device.Name).Info(s.device.Reason)

	ok = true
	return s, nil
}

func (s *stack) close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.WithError(err).Warn("shutdown")
	}
}

func (s *stack) locker() lease.Locker {
	if s.conf.Lease.Backend == "redis" {
		return lease.NewRedis(s.rdb)
	}
	return lease.NewLocal()
}

func (s *stack) queue() queue.Queue {
	if s.conf.Queue.Backend == "redis" {
		return queue.NewRedis(s.rdb, s.conf.Queue.Name)
	}
	return queue.NewLocal(0)
}

func (s *stack) http(svc config.Service) *clients.HTTP {
	return clients.NewHTTP(config.DurSeconds(svc.TimeoutSec), s.conf.Services.Token)
}

func (s *stack) extractor() (*embedding.Extractor, error) {
	mode, err := embedding.ParseMode(s.conf.Embedding.Mode)
	if err != nil {
		return nil, err
	}
	svc := s.conf.Services.Embedding
	model := &clients.Embedder{HTTP: s.http(svc), URL: svc.URL}
	return embedding.NewExtractor(model, s.device, s.conf.Embedding.Dimension,
		embedding.WithMode(mode),
		embedding.WithWindow(s.conf.Embedding.WindowSec, s.conf.Embedding.StepSec),
		embedding.WithLogger(s.log),
		embedding.WithFallbackHook(s.metrics.Fallback),
	), nil
}

func (s *stack) transcriber() caption.Transcriber {
	t := s.conf.Transcription
	if t.Provider == "openai" {
		return clients.NewOpenAITranscriber(t.OpenAI.APIKey, t.OpenAI.BaseURL, t.OpenAI.Model, t.LanguageCode())
	}
	svc := s.conf.Services.Transcription
	return &clients.Transcriber{
		HTTP:       s.http(svc),
		URL:        svc.URL,
		Language:   t.LanguageCode(),
		Model:      t.ModelName(),
		Device:     s.device,
		Log:        s.log,
		OnFallback: s.metrics.Fallback,
	}
}

func (s *stack) pipeline(locker lease.Locker) (*orchestrator.Pipeline, error) {
	ext, err := s.extractor()
	if err != nil {
		return nil, err
	}
	dz, q := s.conf.Services.Diarization, s.conf.Services.Quality
	return orchestrator.NewPipeline(s.conf, orchestrator.Deps{
		Meetings:   s.store,
		References: s.refs,
		Files:      s.files,
		Diarizer: &clients.Diarizer{
			HTTP:       s.http(dz),
			URL:        dz.URL,
			Device:     s.device,
			Log:        s.log,
			OnFallback: s.metrics.Fallback,
		},
		Identifier: &speaker.Identifier{
			Quality: &clients.Quality{
				HTTP:       s.http(q),
				URL:        q.URL,
				Device:     s.device,
				Log:        s.log,
				OnFallback: s.metrics.Fallback,
			},
			Embedder: ext,
			Log:      s.log,
		},
		Merger: &caption.Merger{
			Transcriber: s.transcriber(),
			SampleRate:  s.conf.Audio.TranscriptionSampleRate,
			Log:         s.log,
		},
		Locker:  locker,
		Metrics: s.metrics,
		Tracer:  observability.NewTracer(),
		Log:     s.log,
	}), nil
}
