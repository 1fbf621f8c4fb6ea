package clients

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
	"github.com/maastricht-university/meeting-transcriber/speaker"
)

// --- Signal quality (/quality) ---

type QualityResp struct {
	Frames []speaker.Frame `json:"frames"`
}

// Quality returns frame-level voice activity, SNR and C50 estimates.
type Quality struct {
	HTTP       *HTTP
	URL        string
	Device     device.Selection
	Log        logrus.FieldLogger
	OnFallback func(op string)
}

func (q *Quality) Frames(ctx context.Context, w audio.Waveform) ([]speaker.Frame, error) {
	return device.Run(ctx, q.Device, func(ctx context.Context, dev string) ([]speaker.Frame, error) {
		var out QualityResp
		err := q.HTTP.postAudio(ctx, "quality", q.URL+"/quality", w, map[string]string{"device": dev}, &out)
		return out.Frames, err
	}, fallbackHook(q.Log, "quality", q.OnFallback))
}
