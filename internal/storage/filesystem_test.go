package storage

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "generated/org-1/abc123.png", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "generated/org-1/abc123.png" {
		t.Errorf("stored key = %q", key)
	}

	data, err := store.Read(ctx, "generated/org-1/abc123.png")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("read back %q", data)
	}
}

func TestFileStoreReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = store.Read(context.Background(), "generated/none.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreListPrefix(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{
		"tmp/runs/r1/stage-0.png",
		"tmp/runs/r1/stage-1.png",
		"tmp/runs/r2/stage-0.png",
		"generated/org/a.png",
	} {
		if _, err := store.Write(ctx, key, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "tmp/runs/r1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(keys)
	want := []string{"tmp/runs/r1/stage-0.png", "tmp/runs/r1/stage-1.png"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	missing, err := store.List(ctx, "tmp/runs/never/")
	if err != nil {
		t.Fatalf("list missing prefix: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing prefix returned %v", missing)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Write(ctx, "tmp/x.png", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Delete(ctx, "tmp/x.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Read(ctx, "tmp/x.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read after delete: %v", err)
	}
	// Deleting again is a no-op.
	if err := store.Delete(ctx, "tmp/x.png"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"generated/a.png", false},
		{"/leading/slash.png", false},
		{"./dotted.png", false},
		{"../escape.png", true},
		{"a/../../escape.png", true},
		{"", true},
		{"   ", true},
	}
	for _, tt := range tests {
		_, err := sanitizeKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("sanitizeKey(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}
