package publish

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Content types for published objects.
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// ErrNotFound is returned when an object doesn't exist.
var ErrNotFound = errors.New("publish: object not found")

// ErrTooLarge is returned when an object exceeds the size limit.
var ErrTooLarge = errors.New("publish: object too large")

// ErrInvalidName is returned for empty names and names that escape the
// store root.
var ErrInvalidName = errors.New("publish: invalid object name")

// Store is the interface for publish destinations.
type Store interface {
	// Put stores the contents of r under name, replacing any previous
	// object with that name.
	Put(ctx context.Context, name, contentType string, r io.Reader) (*Object, error)

	// Get opens a stored object. The caller closes it.
	Get(ctx context.Context, name string) (*Object, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error
}

// Object describes a stored object.
type Object struct {
	// Name is the name the object was stored under.
	Name string

	// ContentType is the MIME type of the object.
	ContentType string

	// Size is the object size in bytes.
	Size int64

	// Modified is when the object was last written.
	Modified time.Time

	// Location is a path or URL identifying the object in its store.
	Location string

	// Body provides the contents. Only set by Get.
	Body io.ReadCloser
}

// Close closes the object body if open.
func (o *Object) Close() error {
	if o.Body != nil {
		return o.Body.Close()
	}
	return nil
}

// cleanName normalizes name to a relative slash path inside the store.
func cleanName(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != strings.TrimPrefix(name, "/") {
		return "", ErrInvalidName
	}
	return clean, nil
}

// limitReader fails with ErrTooLarge once more than max bytes are read.
type limitReader struct {
	r   io.Reader
	n   int64
	max int64
}

func newLimitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.n > l.max {
		return 0, ErrTooLarge
	}
	if rem := l.max + 1 - l.n; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, ErrTooLarge
	}
	return n, err
}

// Open returns the store for dest. An s3://bucket/prefix destination
// builds a client from the environment; anything else is a directory.
func Open(dest string, maxSize int64) (Store, error) {
	if rest, ok := strings.CutPrefix(dest, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, errors.New("publish: missing bucket in " + dest)
		}
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return NewS3Store(NewS3Client(S3ConfigFromEnv()), bucket, prefix, maxSize), nil
	}
	return NewDiskStore(dest, maxSize)
}
