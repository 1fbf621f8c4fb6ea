package clients

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
)

// --- Speech to text (/transcribe) ---
type TranscribeResp struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber calls the self-hosted speech-to-text service.
type Transcriber struct {
	HTTP       *HTTP
	URL        string
	Language   string // ISO 639-1
	Model      string // e.g. medium.en
	Device     device.Selection
	Log        logrus.FieldLogger
	OnFallback func(op string)
}

func (t *Transcriber) Transcribe(ctx context.Context, w audio.Waveform) (string, error) {
	return device.Run(ctx, t.Device, func(ctx context.Context, dev string) (string, error) {
		var out TranscribeResp
		err := t.HTTP.postAudio(ctx, "transcribe", t.URL+"/transcribe", w, map[string]string{
			"language": t.Language,
			"model":    t.Model,
			"device":   dev,
		}, &out)
		return strings.TrimSpace(out.Text), err
	}, fallbackHook(t.Log, "transcribe", t.OnFallback))
}
