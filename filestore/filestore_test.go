package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "3/12/abc_standup.vtt", MeetingPath(3, 12, "abc_standup.vtt"))
	assert.Equal(t, "embeddings/7.wav", ReferencePath("7.wav"))
}

func readAll(t *testing.T, fs FileStore, p string) string {
	t.Helper()
	r, err := fs.Read(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func exerciseStore(t *testing.T, fs FileStore) {
	ctx := context.Background()

	_, err := fs.Read(ctx, "1/2/missing.wav")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ok, err := fs.Exists(ctx, "1/2/a.vtt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteFile(ctx, fs, "1/2/a.vtt", func(w io.Writer) error {
		_, err := io.WriteString(w, "WEBVTT\n")
		return err
	}))
	assert.Equal(t, "WEBVTT\n", readAll(t, fs, "1/2/a.vtt"))

	ok, err = fs.Exists(ctx, "1/2/a.vtt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, fs.Delete(ctx, "1/2/a.vtt"))
	require.NoError(t, fs.Delete(ctx, "1/2/a.vtt"))
	ok, err = fs.Exists(ctx, "1/2/a.vtt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, fs)
}

func TestLocalRejectsEscape(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	_, err = fs.Write(context.Background(), "../outside.txt")
	assert.Error(t, err)
}

func TestWriteFileRemovesPartial(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = WriteFile(ctx, fs, "x/partial.vtt", func(w io.Writer) error {
		_, _ = io.WriteString(w, "WEBVTT\n")
		return errors.New("encoder failed")
	})
	assert.Error(t, err)
	ok, err := fs.Exists(ctx, "x/partial.vtt")
	require.NoError(t, err)
	assert.False(t, ok)
}

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{"NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (m *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (m *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{"NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	fs := NewS3(client, "bucket", "uploads")
	exerciseStore(t, fs)

	require.NoError(t, WriteFile(context.Background(), fs, "1/2/b.vtt", func(w io.Writer) error {
		_, err := io.WriteString(w, "x")
		return err
	}))
	assert.Contains(t, client.objects, "uploads/1/2/b.vtt")
}
