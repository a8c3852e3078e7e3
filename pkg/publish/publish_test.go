package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"index.html", "index.html", true},
		{"pages/a.html", "pages/a.html", true},
		{"/pages/a.html", "pages/a.html", true},
		{"", "", false},
		{"/", "", false},
		{"../etc/passwd", "", false},
		{"a/../../b", "", false},
		{"a//b", "", false},
		{`a\b`, "", false},
	}
	for _, tt := range tests {
		got, err := cleanName(tt.name)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("cleanName(%q) = %q, %v; want %q", tt.name, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidName) {
			t.Errorf("cleanName(%q) error = %v, want ErrInvalidName", tt.name, err)
		}
	}
}

func TestLimitReader(t *testing.T) {
	data, err := io.ReadAll(newLimitReader(strings.NewReader("hello"), 5))
	if err != nil || string(data) != "hello" {
		t.Errorf("at limit: %q, %v", data, err)
	}
	if _, err := io.ReadAll(newLimitReader(strings.NewReader("hello!"), 5)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("over limit error = %v, want ErrTooLarge", err)
	}
	data, _ = io.ReadAll(newLimitReader(strings.NewReader("anything"), 0))
	if string(data) != "anything" {
		t.Errorf("unlimited = %q", data)
	}
}

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	store, err := NewDiskStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}

	obj, err := store.Put(ctx, "pages/index.html", ContentTypeHTML, strings.NewReader("<p>hi</p>"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if obj.Size != 9 || obj.Location != filepath.Join(dir, "pages", "index.html") {
		t.Errorf("Put = %+v", obj)
	}

	got, err := store.Get(ctx, "pages/index.html")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	body, _ := io.ReadAll(got.Body)
	got.Close()
	if string(body) != "<p>hi</p>" || got.ContentType != ContentTypeHTML || got.Size != 9 {
		t.Errorf("Get = %+v %q", got, body)
	}

	// Overwrite keeps a single object.
	if _, err := store.Put(ctx, "pages/index.html", ContentTypeHTML, strings.NewReader("<p>bye</p>")); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "pages"))
	if len(entries) != 2 {
		t.Errorf("entries = %d, want object and sidecar", len(entries))
	}

	if err := store.Delete(ctx, "pages/index.html"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Get(ctx, "pages/index.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "pages/index.html"); err != nil {
		t.Errorf("second Delete = %v", err)
	}
}

func TestDiskStoreLimits(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), 4)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Put(ctx, "big", ContentTypeJSON, strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Put error = %v, want ErrTooLarge", err)
	}
	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("failed Put left %d files", len(entries))
	}
	if _, err := store.Put(ctx, "../escape", ContentTypeJSON, strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("escape error = %v", err)
	}
}

func TestDiskStoreForeignFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "raw.txt"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	store, _ := NewDiskStore(dir, 0)

	obj, err := store.Get(context.Background(), "raw.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	if obj.Size != 3 || obj.ContentType != "application/octet-stream" {
		t.Errorf("Get = %+v", obj)
	}
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if aws.ToInt64(in.ContentLength) != int64(len(data)) {
		return nil, errors.New("content length mismatch")
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(f.types[key]),
		LastModified:  &modified,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "pages/", 0)

	obj, err := store.Put(ctx, "index.html", ContentTypeHTML, strings.NewReader("<p>hi</p>"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if obj.Location != "s3://bucket/pages/index.html" || obj.Size != 9 {
		t.Errorf("Put = %+v", obj)
	}
	if _, ok := fake.objects["bucket/pages/index.html"]; !ok {
		t.Fatalf("object not stored under prefix: %v", fake.objects)
	}

	got, err := store.Get(ctx, "index.html")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	body, _ := io.ReadAll(got.Body)
	got.Close()
	if string(body) != "<p>hi</p>" || got.ContentType != ContentTypeHTML || got.Modified.Year() != 2024 {
		t.Errorf("Get = %+v %q", got, body)
	}

	if err := store.Delete(ctx, "index.html"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "index.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestS3StoreErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "", 3)

	if _, err := store.Put(ctx, "big", ContentTypeJSON, strings.NewReader("1234")); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Put error = %v, want ErrTooLarge", err)
	}
	if len(fake.objects) != 0 {
		t.Error("oversized object uploaded")
	}

	boom := errors.New("boom")
	fake.fail = boom
	if _, err := store.Put(ctx, "x", ContentTypeJSON, strings.NewReader("1")); !errors.Is(err, boom) {
		t.Errorf("Put error = %v, want wrapped boom", err)
	}
}

func TestS3ConfigFrom(t *testing.T) {
	env := map[string]string{
		"AWS_DEFAULT_REGION": "eu-west-1",
		"AWS_ENDPOINT_URL":   "http://localhost:9000",
		"AWS_ACCESS_KEY_ID":  "key",
	}
	cfg := s3ConfigFrom(func(k string) string { return env[k] })
	if cfg.Region != "eu-west-1" || cfg.Endpoint != "http://localhost:9000" || cfg.AccessKeyID != "key" {
		t.Errorf("cfg = %+v", cfg)
	}

	env["AWS_REGION"] = "us-west-2"
	env["AWS_ENDPOINT_URL_S3"] = "http://s3.local"
	cfg = s3ConfigFrom(func(k string) string { return env[k] })
	if cfg.Region != "us-west-2" || cfg.Endpoint != "http://s3.local" {
		t.Errorf("specific variables should win: %+v", cfg)
	}

	client := NewS3Client(cfg)
	o := client.Options()
	if o.Region != "us-west-2" || !o.UsePathStyle || aws.ToString(o.BaseEndpoint) != "http://s3.local" {
		t.Errorf("client options = region %q path-style %v endpoint %q", o.Region, o.UsePathStyle, aws.ToString(o.BaseEndpoint))
	}
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	store, err := Open(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ds, ok := store.(*DiskStore); !ok || ds.Dir() != dir {
		t.Errorf("Open(dir) = %T", store)
	}

	store, err = Open("s3://bucket/pages", 0)
	if err != nil {
		t.Fatal(err)
	}
	s3s, ok := store.(*S3Store)
	if !ok || s3s.bucket != "bucket" || s3s.prefix != "pages/" {
		t.Errorf("Open(s3) = %+v", store)
	}

	if _, err := Open("s3://", 0); err == nil {
		t.Error("expected error for missing bucket")
	}
}
