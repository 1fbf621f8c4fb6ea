// Package filestore reads uploaded audio and reference clips and writes
// generated transcripts. Paths are slash-separated and relative to the
// storage root: meeting files live under <group>/<meeting>/ and reference
// clips under embeddings/.
package filestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/maastricht-university/meeting-transcriber/config"
)

// FileStore is the storage contract. Read on a missing file returns an
// error wrapping os.ErrNotExist; Delete of a missing file is a no-op.
type FileStore interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string) (io.WriteCloser, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// MeetingPath is the location of a meeting's file.
func MeetingPath(groupID, meetingID int64, name string) string {
	return path.Join(strconv.FormatInt(groupID, 10), strconv.FormatInt(meetingID, 10), name)
}

// ReferencePath is the location of a member's reference clip.
func ReferencePath(name string) string {
	return path.Join("embeddings", name)
}

// WriteFile writes to p through fn and closes the handle before
// returning. On failure the partial file is removed.
func WriteFile(ctx context.Context, fs FileStore, p string, fn func(io.Writer) error) error {
	w, err := fs.Write(ctx, p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	werr := fn(w)
	cerr := w.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = fs.Delete(ctx, p)
		return fmt.Errorf("write %s: %w", p, werr)
	}
	return nil
}

// New returns the backend named by cfg.Backend.
func New(cfg config.Storage) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.Root)
	case "s3":
		return NewS3(NewS3Client(cfg.S3), cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
