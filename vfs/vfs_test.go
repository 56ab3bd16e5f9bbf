package vfs_test

import (
	"context"
	"errors"
	"testing"

	"bundlr.dev/bundlr/vfs"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":               "/",
		"foo.js":         "/foo.js",
		"/foo/./bar.js":  "/foo/bar.js",
		"/foo/../bar.js": "/bar.js",
		"foo\\bar.js":    "/foo/bar.js",
	}
	for in, want := range cases {
		if got := vfs.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStackWriteAndRead(t *testing.T) {
	s := vfs.NewStack()
	s.WriteSync("/index.js", []byte("hello"))

	got, err := s.ReadSync("/index.js")
	if err != nil {
		t.Fatalf("ReadSync: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestStackReadSyncMissReturnsNotFoundError(t *testing.T) {
	s := vfs.NewStack()
	_, err := s.ReadSync("/missing.js")
	var nf *vfs.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("got %T (%v), want *NotFoundError", err, err)
	}
}

type fakeLayer struct {
	files map[string][]byte
}

func (f *fakeLayer) ReadSync(p string) ([]byte, bool) {
	d, ok := f.files[p]
	return d, ok
}
func (f *fakeLayer) ReadAsync(ctx context.Context, p string) ([]byte, error) {
	if d, ok := f.files[p]; ok {
		return d, nil
	}
	return nil, &vfs.NotFoundError{Path: p}
}
func (f *fakeLayer) ExistsSync(p string) bool { _, ok := f.files[p]; return ok }
func (f *fakeLayer) ExistsAsync(ctx context.Context, p string) (bool, error) {
	_, ok := f.files[p]
	return ok, nil
}

func TestStackLayerPriorityTopWins(t *testing.T) {
	s := vfs.NewStack(&fakeLayer{files: map[string][]byte{"/a.js": []byte("bottom")}})
	s.WriteSync("/a.js", []byte("top"))

	got, err := s.ReadSync("/a.js")
	if err != nil {
		t.Fatalf("ReadSync: %v", err)
	}
	if string(got) != "top" {
		t.Errorf("got %q, want top layer to win", got)
	}
}

func TestStackFallsThroughToLowerLayer(t *testing.T) {
	s := vfs.NewStack(&fakeLayer{files: map[string][]byte{"/a.js": []byte("bottom")}})

	got, err := s.ReadSync("/a.js")
	if err != nil {
		t.Fatalf("ReadSync: %v", err)
	}
	if string(got) != "bottom" {
		t.Errorf("got %q", got)
	}
}

func TestStackExistsSync(t *testing.T) {
	s := vfs.NewStack()
	if s.ExistsSync("/a.js") {
		t.Error("expected miss before write")
	}
	s.WriteSync("/a.js", []byte("x"))
	if !s.ExistsSync("/a.js") {
		t.Error("expected hit after write")
	}
}

func TestStackResetCacheNotifiesResetters(t *testing.T) {
	layer := &resetterLayer{fakeLayer: fakeLayer{files: map[string][]byte{}}}
	s := vfs.NewStack(layer)
	s.ResetCache()
	if !layer.reset {
		t.Error("expected ResetCache to be called on a CacheResetter layer")
	}
}

type resetterLayer struct {
	fakeLayer
	reset bool
}

func (r *resetterLayer) ResetCache() { r.reset = true }
