package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/maastricht-university/meeting-transcriber/audio"
	"github.com/maastricht-university/meeting-transcriber/device"
)

// HTTP talks to the self-hosted model services. Every request carries the
// bearer token when one is configured.
type HTTP struct {
	c     *http.Client
	token string
}

func NewHTTP(timeout time.Duration, token string) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}, token: token}
}

// StatusError is a non-200 answer from a model service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Service, e.Code, e.Body)
}

// errorBody is the JSON error envelope of the model services. Kind
// "device" marks compute-device failures such as out of memory.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// postAudio uploads w as a 16-bit WAV form file together with fields and
// decodes the JSON answer into out.
func (h *HTTP) postAudio(ctx context.Context, service, url string, w audio.Waveform, fields map[string]string, out any) error {
	var b bytes.Buffer
	mw := multipart.NewWriter(&b)

	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		return err
	}
	if err := audio.EncodeWAV(fw, w); err != nil {
		return fmt.Errorf("%s encode: %w", service, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(url, "/"), &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(service, fields["device"], resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", service, err)
	}
	return nil
}

// statusError maps a failed answer to an error. Device failures become a
// *device.Error wrapping the *StatusError so the caller can fall back.
func statusError(service, dev string, code int, body []byte) error {
	se := &StatusError{Service: service, Code: code, Body: strings.TrimSpace(string(body))}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Kind == "device" {
		if eb.Error != "" {
			se.Body = eb.Error
		}
		kind := device.Accelerator
		if dev == device.FallbackName {
			kind = device.Fallback
		}
		return &device.Error{Kind: kind, Op: service, Err: se}
	}
	return se
}

// IsStatus reports whether err carries a *StatusError with code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
