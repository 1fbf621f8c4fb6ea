// Package caption turns diarised speaker turns into transcribed caption
// entries and writes them as WebVTT.
package caption

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/speaker"
)

// Entry is one caption cue.
type Entry struct {
	Index   int
	Start   float64 // sec
	End     float64 // sec
	Speaker string
	Text    string
}

// Transcriber converts a mono clip at the model's sample rate to text.
type Transcriber interface {
	Transcribe(ctx context.Context, w audio.Waveform) (string, error)
}

// Merger transcribes each turn and attaches the text to its speaker.
type Merger struct {
	Transcriber Transcriber
	// SampleRate is the rate the transcriber expects.
	SampleRate int
	Log        logrus.FieldLogger
}

// Merge returns one entry per turn in start order; turns with equal start
// keep diarisation order. Turn ends are clamped to the audio duration and
// turns starting at or after it are dropped. A transcription failure
// aborts the merge.
func (m *Merger) Merge(ctx context.Context, w audio.Waveform, turns []speaker.Turn) ([]Entry, error) {
	log := m.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	total := w.Duration()

	ordered := append([]speaker.Turn(nil), turns...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	entries := make([]Entry, 0, len(ordered))
	for _, t := range ordered {
		start, end := t.Start, min(t.End, total)
		if start < 0 {
			start = 0
		}
		if start >= total {
			log.WithFields(logrus.Fields{"start": t.Start, "end": t.End, "duration": total}).
				Warn("segment is outside audio bounds, skipping")
			continue
		}
		seg, ok := w.Crop(start, end)
		if !ok {
			log.WithFields(logrus.Fields{"start": t.Start, "end": t.End}).Warn("empty segment, skipping")
			continue
		}
		seg, err := seg.Mono().Resample(m.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample turn at %.3fs: %w", start, err)
		}
		text, err := m.Transcriber.Transcribe(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("transcribe turn at %.3fs: %w", start, err)
		}
		entries = append(entries, Entry{
			Index:   len(entries) + 1,
			Start:   start,
			End:     end,
			Speaker: t.Label,
			Text:    text,
		})
	}
	return entries, nil
}
