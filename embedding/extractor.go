package embedding

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
)

// Model is a pretrained speaker-embedding model. Implementations return
// the raw model output; normalisation happens in the Extractor.
type Model interface {
	Embed(ctx context.Context, w audio.Waveform, dev string) ([]float32, error)
}

// Mode selects how a clip is turned into one embedding.
type Mode int

const (
	// Whole embeds the clip in a single model call.
	Whole Mode = iota
	// Windowed embeds fixed-length windows and averages them.
	Windowed
)

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "whole":
		return Whole, nil
	case "window", "windowed":
		return Windowed, nil
	}
	return Whole, fmt.Errorf("embedding: unknown mode %q", s)
}

// Extractor wraps a Model with device selection, normalisation and a
// dimension check.
type Extractor struct {
	model      Model
	sel        device.Selection
	dim        int
	mode       Mode
	window     float64
	step       float64
	log        logrus.FieldLogger
	onFallback func(op string)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMode sets the default extraction mode (Whole).
func WithMode(m Mode) Option { return func(e *Extractor) { e.mode = m } }

// WithWindow sets window length and hop in seconds for Windowed mode.
func WithWindow(window, step float64) Option {
	return func(e *Extractor) {
		if window > 0 && step > 0 {
			e.window, e.step = window, step
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(e *Extractor) { e.log = l } }

// WithFallbackHook is called each time a call degrades to the fallback device.
func WithFallbackHook(fn func(op string)) Option { return func(e *Extractor) { e.onFallback = fn } }

// NewExtractor returns an Extractor producing dim-dimensional vectors.
func NewExtractor(m Model, sel device.Selection, dim int, opts ...Option) *Extractor {
	e := &Extractor{
		model:  m,
		sel:    sel,
		dim:    dim,
		window: 3,
		step:   1.5,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Dimension returns the vector length the extractor enforces.
func (e *Extractor) Dimension() int { return e.dim }

// Embed extracts a unit-norm embedding using the configured mode.
func (e *Extractor) Embed(ctx context.Context, w audio.Waveform) (Vector, error) {
	if e.mode == Windowed {
		return e.EmbedWindowed(ctx, w)
	}
	return e.EmbedWhole(ctx, w)
}

// EmbedWhole embeds w in one model call.
func (e *Extractor) EmbedWhole(ctx context.Context, w audio.Waveform) (Vector, error) {
	raw, err := device.Run(ctx, e.sel, func(ctx context.Context, dev string) ([]float32, error) {
		return e.model.Embed(ctx, w, dev)
	}, e.fallback("embed"))
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(raw) != e.dim {
		return nil, fmt.Errorf("%w: model returned %d, want %d", ErrDimension, len(raw), e.dim)
	}
	return Normalize(raw)
}

// EmbedWindowed embeds sliding windows over w and returns their normalised
// mean. A clip shorter than one window is embedded whole.
func (e *Extractor) EmbedWindowed(ctx context.Context, w audio.Waveform) (Vector, error) {
	total := w.Duration()
	if total <= e.window {
		return e.EmbedWhole(ctx, w)
	}
	var vs []Vector
	for start := 0.0; start < total; start += e.step {
		end := start + e.window
		if end > total {
			end = total
		}
		win, ok := w.Crop(start, end)
		if !ok {
			break
		}
		v, err := e.EmbedWhole(ctx, win)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
		if end >= total {
			break
		}
	}
	return Mean(vs)
}

func (e *Extractor) fallback(op string) func(error) {
	return func(err error) {
		e.log.WithError(err).WithField("op", op).Warn("device error, retrying on fallback")
		if e.onFallback != nil {
			e.onFallback(op)
		}
	}
}
