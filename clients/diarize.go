package clients

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
	"github.com/maastricht-university/meeting-transcriber/speaker"
)

// --- Diarisation (/diarize) ---
type DiarizeResp struct {
	Turns []speaker.Turn `json:"turns"`
}

// Diarizer calls the diarisation service on the selected device.
type Diarizer struct {
	HTTP       *HTTP
	URL        string
	Device     device.Selection
	Log        logrus.FieldLogger
	OnFallback func(op string)
}

// Diarize returns the speaker turns of w in time order. numSpeakers is the
// expected speaker count hint.
func (d *Diarizer) Diarize(ctx context.Context, w audio.Waveform, numSpeakers int) ([]speaker.Turn, error) {
	return device.Run(ctx, d.Device, func(ctx context.Context, dev string) ([]speaker.Turn, error) {
		var out DiarizeResp
		err := d.HTTP.postAudio(ctx, "diarize", d.URL+"/diarize", w, map[string]string{
			"num_speakers": strconv.Itoa(numSpeakers),
			"device":       dev,
		}, &out)
		return out.Turns, err
	}, fallbackHook(d.Log, "diarize", d.OnFallback))
}

func fallbackHook(log logrus.FieldLogger, op string, fn func(string)) func(error) {
	return func(err error) {
		if log != nil {
			log.WithError(err).WithField("op", op).Warn("device error, retrying on fallback")
		}
		if fn != nil {
			fn(op)
		}
	}
}
