package speaker

import (
	"context"

	"github.com/maastricht-university/meeting-transcriber/audio"
)

// voicedProbability is the voice-activity probability above which a frame
// counts as speech.
const voicedProbability = 0.5

// Frame is one frame of a signal-quality estimate.
type Frame struct {
	VAD float64 `json:"vad"` // voice-activity probability
	SNR float64 `json:"snr"` // dB
	C50 float64 `json:"c50"` // clarity, dB
}

// QualityModel estimates per-frame voice activity and SNR for a clip.
type QualityModel interface {
	Frames(ctx context.Context, w audio.Waveform) ([]Frame, error)
}

// MeanSNR averages SNR over voiced frames. ok is false when no frame is
// voiced.
func MeanSNR(frames []Frame) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, f := range frames {
		if f.VAD > voicedProbability {
			sum += f.SNR
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// QualityFilter decides whether a cropped segment is clean enough to embed.
type QualityFilter struct {
	Model     QualityModel
	Threshold float64
}

// IsUsable reports whether the cropped segment has voiced frames with a mean
// SNR at or above the threshold. It also returns the measured SNR.
func (f QualityFilter) IsUsable(ctx context.Context, seg audio.Waveform) (bool, float64, error) {
	frames, err := f.Model.Frames(ctx, seg)
	if err != nil {
		return false, 0, err
	}
	snr, ok := MeanSNR(frames)
	if !ok {
		return false, 0, nil
	}
	return snr >= f.Threshold, snr, nil
}
