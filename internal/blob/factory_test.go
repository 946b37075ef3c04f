package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"ritual/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	cases := []struct {
		cfg  config.Blob
		want Driver
	}{
		{config.Blob{Root: root}, DriverFilesystem},
		{config.Blob{Driver: config.BlobFS, Root: root}, DriverFilesystem},
		{config.Blob{Driver: config.BlobMemory}, DriverMemory},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("driver %q: got %s", tc.cfg.Driver, store.Driver())
		}
		if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), PutOptions{Overwrite: true}); err != nil {
			t.Fatalf("put: %v", err)
		}
		_, rc, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(data) != "v" {
			t.Fatalf("unexpected payload %q", data)
		}
		if _, err := store.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Blob{Driver: "tape"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	store, err := Open(context.Background(), config.Blob{Driver: config.BlobS3, S3: config.S3{Region: "us-east-1"}})
	if err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if store != nil {
		t.Fatalf("failed open must return a nil store, got %T", store)
	}
}

func TestMockS3ForTests(t *testing.T) {
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
