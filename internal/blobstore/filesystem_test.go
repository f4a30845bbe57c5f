package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	fs.SetRetryConfig(RetryConfig{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	return fs
}

func TestPutGetRoundTrip(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	data := []byte("hello blob")
	if err := fs.Put(ctx, BucketStaging, "tenant/asset/thumb_200.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := fs.Get(ctx, BucketStaging, "tenant/asset/thumb_200.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	size, err := fs.Stat(ctx, BucketStaging, "tenant/asset/thumb_200.jpg")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Stat = %d, want %d", size, len(data))
	}
}

func TestGetMissingBlob(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if _, err := fs.Get(ctx, BucketStaging, "nope/missing.jpg"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Get missing = %v, want ErrNotExist", err)
	}
	if _, err := fs.Stat(ctx, BucketStaging, "nope/missing.jpg"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Stat missing = %v, want ErrNotExist", err)
	}

	exists, err := fs.Exists(ctx, BucketStaging, "nope/missing.jpg")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("missing blob reported as existing")
	}
}

func TestPutOverwrites(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if err := fs.Put(ctx, BucketCanonical, "a/k", []byte("first"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Put(ctx, BucketCanonical, "a/k", []byte("second version"), "text/plain"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := fs.Get(ctx, BucketCanonical, "a/k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second version" {
		t.Errorf("Get after overwrite = %q", got)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if err := fs.Put(ctx, BucketStaging, "a/k", []byte("x"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Delete(ctx, BucketStaging, "a/k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fs.Delete(ctx, BucketStaging, "a/k"); err != nil {
		t.Errorf("second Delete = %v, want nil", err)
	}
	exists, _ := fs.Exists(ctx, BucketStaging, "a/k")
	if exists {
		t.Error("blob still exists after delete")
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"t1/a/preview.jpg", "t1/a/thumb.jpg", "t1/b/thumb.jpg", "t2/c/thumb.jpg"} {
		if err := fs.Put(ctx, BucketStaging, key, []byte("x"), ""); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	keys, err := fs.List(ctx, BucketStaging, "t1/a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"t1/a/preview.jpg", "t1/a/thumb.jpg"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}

	keys, err = fs.List(ctx, BucketStaging, "t1/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("List t1/ returned %d keys, want 3", len(keys))
	}
}

func TestListMissingBucketIsEmpty(t *testing.T) {
	fs := newTestStore(t)
	keys, err := fs.List(context.Background(), "no-such-bucket", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List = %v, want empty", keys)
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if err := fs.Put(ctx, BucketStaging, "a/real.jpg", []byte("x"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate a crashed writer leaving a partial temp file behind.
	tmp := filepath.Join(fs.root, BucketStaging, "a", "partial.jpg.tmp")
	if err := os.WriteFile(tmp, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	keys, err := fs.List(ctx, BucketStaging, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"a/real.jpg"}) {
		t.Errorf("List = %v, want only the real blob", keys)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	cases := []struct{ bucket, key string }{
		{BucketStaging, "../escape"},
		{BucketStaging, "../../etc/passwd"},
		{"..", "key"},
		{"", "key"},
		{BucketStaging, ""},
	}
	for _, tc := range cases {
		if err := fs.Put(ctx, tc.bucket, tc.key, []byte("x"), ""); err == nil {
			t.Errorf("Put(%q, %q) succeeded, want error", tc.bucket, tc.key)
		}
		if _, err := fs.Get(ctx, tc.bucket, tc.key); err == nil {
			t.Errorf("Get(%q, %q) succeeded, want error", tc.bucket, tc.key)
		}
	}
}

func TestVerify(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if err := fs.Put(ctx, BucketStaging, "a/ok.jpg", make([]byte, 1024), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := fs.Put(ctx, BucketStaging, "a/small.jpg", make([]byte, 16), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := Verify(ctx, fs, BucketStaging, "a/ok.jpg", 512); err != nil {
		t.Errorf("Verify ok = %v, want nil", err)
	}

	err := Verify(ctx, fs, BucketStaging, "a/small.jpg", 512)
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("Verify undersized = %v, want VerifyError", err)
	}
	if ve.Reason != "undersized" || ve.Size != 16 || ve.MinSize != 512 {
		t.Errorf("VerifyError = %+v, want undersized 16/512", ve)
	}

	err = Verify(ctx, fs, BucketStaging, "a/missing.jpg", 512)
	if !errors.As(err, &ve) {
		t.Fatalf("Verify missing = %v, want VerifyError", err)
	}
	if ve.Reason != "missing" {
		t.Errorf("VerifyError reason = %q, want missing", ve.Reason)
	}
}
