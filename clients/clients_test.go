package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
	"github.com/maastricht-university/meeting-transcriber/speaker"
)

func clip() audio.Waveform {
	return audio.Waveform{SampleRate: 16000, Channels: [][]float32{make([]float32, 1600)}}
}

type recorder struct {
	mu      sync.Mutex
	forms   []map[string]string
	auth    []string
	fileLen []int
}

func (r *recorder) record(t *testing.T, req *http.Request) map[string]string {
	t.Helper()
	require.NoError(t, req.ParseMultipartForm(1<<20))
	f, _, err := req.FormFile("file")
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, err)

	form := map[string]string{}
	for k, v := range req.MultipartForm.Value {
		form[k] = v[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms = append(r.forms, form)
	r.auth = append(r.auth, req.Header.Get("Authorization"))
	r.fileLen = append(r.fileLen, len(b))
	return form
}

func TestDiarizer(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/diarize", r.URL.Path)
		rec.record(t, r)
		_ = json.NewEncoder(w).Encode(DiarizeResp{Turns: []speaker.Turn{
			{Label: "SPEAKER_00", Start: 0, End: 1.5},
			{Label: "SPEAKER_01", Start: 1.5, End: 3},
		}})
	}))
	defer srv.Close()

	d := &Diarizer{HTTP: NewHTTP(time.Second, "tok"), URL: srv.URL, Device: device.Policy{}.Select()}
	turns, err := d.Diarize(context.Background(), clip(), 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "SPEAKER_01", turns[1].Label)

	assert.Equal(t, "2", rec.forms[0]["num_speakers"])
	assert.Equal(t, "cpu", rec.forms[0]["device"])
	assert.Equal(t, "Bearer tok", rec.auth[0])
	assert.Equal(t, 44+1600*2, rec.fileLen[0])
}

func TestDeviceErrorFallsBack(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := rec.record(t, r)
		if form["device"] == "cuda:0" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"CUDA out of memory","kind":"device"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(TranscribeResp{Text: "  hello there \n"})
	}))
	defer srv.Close()

	var fellBack []string
	tr := &Transcriber{
		HTTP:       NewHTTP(time.Second, ""),
		URL:        srv.URL,
		Language:   "en",
		Model:      "medium.en",
		Device:     device.Policy{Accelerator: "cuda:0", RetryOnFallback: true}.Select(),
		OnFallback: func(op string) { fellBack = append(fellBack, op) },
	}
	text, err := tr.Transcribe(context.Background(), clip())
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, []string{"transcribe"}, fellBack)
	require.Len(t, rec.forms, 2)
	assert.Equal(t, "medium.en", rec.forms[1]["model"])
	assert.Equal(t, "", rec.auth[0])
}

func TestQualityDeviceErrorFallsBack(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quality", r.URL.Path)
		form := rec.record(t, r)
		if form["device"] == "cuda:0" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"CUDA out of memory","kind":"device"}`))
			return
		}
		_, _ = w.Write([]byte(`{"frames":[{"vad":0.8,"snr":9}]}`))
	}))
	defer srv.Close()

	var fellBack []string
	q := &Quality{
		HTTP:       NewHTTP(time.Second, ""),
		URL:        srv.URL,
		Device:     device.Policy{Accelerator: "cuda:0", RetryOnFallback: true}.Select(),
		OnFallback: func(op string) { fellBack = append(fellBack, op) },
	}
	frames, err := q.Frames(context.Background(), clip())
	require.NoError(t, err)
	assert.Equal(t, []speaker.Frame{{VAD: 0.8, SNR: 9}}, frames)
	assert.Equal(t, []string{"quality"}, fellBack)
	require.Len(t, rec.forms, 2)
	assert.Equal(t, "cuda:0", rec.forms[0]["device"])
	assert.Equal(t, "cpu", rec.forms[1]["device"])
}

func TestQualityFallbackFailureIsDeviceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"oom","kind":"device"}`))
	}))
	defer srv.Close()

	q := &Quality{
		HTTP:   NewHTTP(time.Second, ""),
		URL:    srv.URL,
		Device: device.Policy{Accelerator: "cuda:0", RetryOnFallback: true}.Select(),
	}
	_, err := q.Frames(context.Background(), clip())
	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.Fallback, de.Kind)
}

func TestPlainErrorIsNotDeviceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad audio", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	e := &Embedder{HTTP: NewHTTP(time.Second, ""), URL: srv.URL}
	_, err := e.Embed(context.Background(), clip(), "cuda:0")
	require.Error(t, err)
	assert.False(t, device.IsDeviceError(err))
	assert.True(t, IsStatus(err, http.StatusUnprocessableEntity))
}

func TestStatusErrorDeviceKind(t *testing.T) {
	err := statusError("embed", "cpu", 503, []byte(`{"error":"oom","kind":"device"}`))
	var de *device.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, device.Fallback, de.Kind)
	assert.True(t, IsStatus(err, 503))
}

func TestEmbedderAndQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/embed":
			_ = json.NewEncoder(w).Encode(EmbedResp{Embedding: []float32{1, 2, 3}})
		case "/quality":
			_, _ = w.Write([]byte(`{"frames":[{"vad":0.9,"snr":12.5,"c50":30}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	h := NewHTTP(time.Second, "")

	vec, err := (&Embedder{HTTP: h, URL: srv.URL}).Embed(context.Background(), clip(), "cpu")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	frames, err := (&Quality{HTTP: h, URL: srv.URL}).Frames(context.Background(), clip())
	require.NoError(t, err)
	assert.Equal(t, []speaker.Frame{{VAD: 0.9, SNR: 12.5, C50: 30}}, frames)
}

func TestOpenAITranscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/transcriptions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" good morning "}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber("sk-test", srv.URL, "", "en", option.WithMaxRetries(0))
	text, err := tr.Transcribe(context.Background(), clip())
	require.NoError(t, err)
	assert.Equal(t, "good morning", text)
}
