// Package audio holds decoded waveforms and the sample-level operations the
// pipeline needs: cropping to a time range, down-mixing to mono, resampling
// and re-encoding to 16-bit PCM WAV for model services.
package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

var (
	// ErrUnsupportedFormat is returned for containers Decode cannot read.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")

	// ErrEmpty is returned when a source decodes to zero samples.
	ErrEmpty = errors.New("audio: no samples")
)

// Waveform is channel-major float32 audio in [-1, 1].
type Waveform struct {
	SampleRate int
	Channels   [][]float32
}

// Len returns the number of samples per channel.
func (w Waveform) Len() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// Duration returns the length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.Len()) / float64(w.SampleRate)
}

// Crop returns the samples in [start, end) seconds. The range is clamped to
// the waveform; ok is false when nothing remains after clamping.
func (w Waveform) Crop(start, end float64) (Waveform, bool) {
	n := w.Len()
	s := int(start * float64(w.SampleRate))
	e := int(end * float64(w.SampleRate))
	if s < 0 {
		s = 0
	}
	if e > n {
		e = n
	}
	if s >= e {
		return Waveform{SampleRate: w.SampleRate}, false
	}
	out := Waveform{SampleRate: w.SampleRate, Channels: make([][]float32, len(w.Channels))}
	for i, ch := range w.Channels {
		out.Channels[i] = ch[s:e]
	}
	return out, true
}

// Mono averages all channels into one.
func (w Waveform) Mono() Waveform {
	if len(w.Channels) <= 1 {
		return w
	}
	n := w.Len()
	mono := make([]float32, n)
	scale := 1 / float32(len(w.Channels))
	for _, ch := range w.Channels {
		for i := 0; i < n; i++ {
			mono[i] += ch[i] * scale
		}
	}
	return Waveform{SampleRate: w.SampleRate, Channels: [][]float32{mono}}
}

// Resample converts every channel to rate. It is a no-op when the rate
// already matches.
func (w Waveform) Resample(rate int) (Waveform, error) {
	if rate <= 0 {
		return Waveform{}, fmt.Errorf("audio: invalid target rate %d", rate)
	}
	if rate == w.SampleRate {
		return w, nil
	}
	out := Waveform{SampleRate: rate, Channels: make([][]float32, len(w.Channels))}
	for i, ch := range w.Channels {
		r, err := resampling.New(&resampling.Config{
			InputRate:  float64(w.SampleRate),
			OutputRate: float64(rate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return Waveform{}, fmt.Errorf("failed to create resampler: %w", err)
		}
		in := make([]float64, len(ch))
		for j, s := range ch {
			in[j] = float64(s)
		}
		res, err := r.Process(in)
		if err != nil {
			return Waveform{}, fmt.Errorf("resample error: %w", err)
		}
		// the filter holds back its latency until flushed
		tail, err := r.Flush()
		if err != nil {
			return Waveform{}, fmt.Errorf("resample flush: %w", err)
		}
		res = append(res, tail...)
		samples := make([]float32, len(res))
		for j, s := range res {
			samples[j] = clamp(float32(s))
		}
		out.Channels[i] = samples
	}
	return out, nil
}

// Decode reads a .wav or .mp3 stream; name selects the container by its
// extension. Sources with more than two channels are folded to stereo by the
// decoder.
func Decode(r io.Reader, name string) (Waveform, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".wav":
		s, f, err = wav.Decode(r)
	case ".mp3":
		s, f, err = mp3.Decode(io.NopCloser(r))
	default:
		return Waveform{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", name, err)
	}
	defer s.Close()

	nch := f.NumChannels
	if nch < 1 {
		nch = 1
	}
	if nch > 2 {
		nch = 2
	}
	out := Waveform{SampleRate: int(f.SampleRate), Channels: make([][]float32, nch)}
	if n := s.Len(); n > 0 {
		for i := range out.Channels {
			out.Channels[i] = make([]float32, 0, n)
		}
	}

	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			for c := 0; c < nch; c++ {
				out.Channels[c] = append(out.Channels[c], float32(frame[c]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if out.Len() == 0 {
		return Waveform{}, fmt.Errorf("decode %s: %w", name, ErrEmpty)
	}
	return out, nil
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
