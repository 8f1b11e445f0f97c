package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

var gifHeader = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}

	ctx := context.Background()
	key := "images/ab/abcdef.gif"

	if err := backend.Upload(ctx, key, bytes.NewReader(gifHeader)); err != nil {
		t.Fatalf("upload: %v", err)
	}

	meta, err := backend.GetObjectMeta(ctx, key)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.Size != int64(len(gifHeader)) {
		t.Fatalf("expected size %d, got %d", len(gifHeader), meta.Size)
	}
	if meta.ContentType != "image/gif" {
		t.Fatalf("expected detected image/gif, got %q", meta.ContentType)
	}

	rc, err := backend.Download(ctx, key)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, gifHeader) {
		t.Fatalf("download mismatch: %q", string(got))
	}

	if err := backend.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "images")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directories removed, stat err=%v", err)
	}
	if err := backend.Delete(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new fs backend: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside", "a/../../outside", ""} {
		if err := backend.Upload(ctx, key, bytes.NewReader(gifHeader)); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
		if _, err := backend.Download(ctx, key); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without base directory")
	}
}
