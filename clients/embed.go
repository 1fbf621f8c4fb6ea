package clients

import (
	"context"

	"github.com/maastricht-university/meeting-transcriber/audio"
)

// --- Speaker embedding (/embed) ---
type EmbedResp struct {
	Embedding []float32 `json:"embedding"`
}

// Embedder is the raw embedding model service. Device fallback and
// normalisation are applied by embedding.Extractor.
type Embedder struct {
	HTTP *HTTP
	URL  string
}

func (e *Embedder) Embed(ctx context.Context, w audio.Waveform, dev string) ([]float32, error) {
	var out EmbedResp
	if err := e.HTTP.postAudio(ctx, "embed", e.URL+"/embed", w, map[string]string{"device": dev}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}
