package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const metaSuffix = ".meta"

// DiskStore stores objects on the local filesystem.
type DiskStore struct {
	dir     string
	maxSize int64

	// Serializes writes to the same directory so a sidecar always
	// matches its object.
	mu sync.Mutex
}

type diskMeta struct {
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if needed.
// maxSize limits object size in bytes (0 = no limit).
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the root directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Put writes the object through a temp file and renames it into place.
func (s *DiskStore) Put(_ context.Context, name, contentType string, r io.Reader) (*Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	path := s.path(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".publish-*")
	if err != nil {
		return nil, err
	}
	tmp := f.Name()

	written, err := io.Copy(f, newLimitReader(r, s.maxSize))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, err
	}

	meta := diskMeta{ContentType: contentType, Size: written, Modified: time.Now().UTC()}
	if err := s.saveMeta(name, meta); err != nil {
		return nil, err
	}

	return &Object{
		Name:        name,
		ContentType: contentType,
		Size:        written,
		Modified:    meta.Modified,
		Location:    path,
	}, nil
}

// Get opens a stored object.
func (s *DiskStore) Get(_ context.Context, name string) (*Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	path := s.path(name)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	obj := &Object{Name: name, Location: path, Body: f}
	if meta, err := s.loadMeta(name); err == nil {
		obj.ContentType = meta.ContentType
		obj.Size = meta.Size
		obj.Modified = meta.Modified
	} else if info, err := f.Stat(); err == nil {
		// Written by something else.
		obj.ContentType = "application/octet-stream"
		obj.Size = info.Size()
		obj.Modified = info.ModTime()
	}
	return obj, nil
}

// Delete removes an object and its sidecar.
func (s *DiskStore) Delete(_ context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(s.path(name) + metaSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

func (s *DiskStore) saveMeta(name string, meta diskMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(name)+metaSuffix, data, 0644)
}

func (s *DiskStore) loadMeta(name string) (*diskMeta, error) {
	data, err := os.ReadFile(s.path(name) + metaSuffix)
	if err != nil {
		return nil, err
	}
	var meta diskMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
