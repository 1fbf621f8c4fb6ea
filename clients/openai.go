package clients

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/maastricht-university/meeting-transcriber/audio"
)

// OpenAITranscriber uses a hosted Whisper-compatible transcription API.
type OpenAITranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAITranscriber builds a client for model. baseURL may point at any
// OpenAI-compatible provider; empty uses the default.
func NewOpenAITranscriber(apiKey, baseURL, model, language string, opts ...option.RequestOption) *OpenAITranscriber {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	client := openai.NewClient(clientOpts...)
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{client: &client, model: model, language: language}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, w audio.Waveform) (string, error) {
	var b bytes.Buffer
	if err := audio.EncodeWAV(&b, w); err != nil {
		return "", fmt.Errorf("openai encode: %w", err)
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(b.Bytes()), "segment.wav", "audio/wav"),
		Model: openai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}
	res, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcribe: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}
