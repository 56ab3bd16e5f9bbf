package registry_test

import (
	"context"
	"testing"

	"bundlr.dev/bundlr/registry"
)

type fakeFetcher struct {
	byURL map[string][]byte
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{byURL: make(map[string][]byte), calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls[url]++
	data, ok := f.byURL[url]
	if !ok {
		return nil, &registry.FetchError{URL: url, StatusCode: 404, Message: "not found"}
	}
	return data, nil
}

const litMeta = `{
	"name": "lit",
	"dist-tags": {"latest": "2.8.0"},
	"versions": {
		"2.0.0": {"version": "2.0.0"},
		"2.8.0": {"version": "2.8.0"},
		"1.5.0": {"version": "1.5.0"}
	}
}`

func TestResolveVersionLatestTag(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	v, err := r.ResolveVersion(context.Background(), "lit", "")
	if err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if v != "2.8.0" {
		t.Errorf("got %q", v)
	}
}

func TestResolveVersionCaretRange(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	v, err := r.ResolveVersion(context.Background(), "lit", "^2.0.0")
	if err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if v != "2.8.0" {
		t.Errorf("got %q", v)
	}
}

func TestResolveVersionExactVersion(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	v, err := r.ResolveVersion(context.Background(), "lit", "1.5.0")
	if err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if v != "1.5.0" {
		t.Errorf("got %q", v)
	}
}

func TestResolveVersionCachesResult(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	if _, err := r.ResolveVersion(context.Background(), "lit", "latest"); err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if _, err := r.ResolveVersion(context.Background(), "lit", "latest"); err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if f.calls["https://registry.npmjs.org/lit"] != 1 {
		t.Errorf("expected a single network fetch, got %d", f.calls["https://registry.npmjs.org/lit"])
	}
}

func TestResolveVersionNoMatch(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	if _, err := r.ResolveVersion(context.Background(), "lit", "^99.0.0"); err == nil {
		t.Error("expected an error for an unsatisfiable range")
	}
}

func TestResetCacheForcesReFetch(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://registry.npmjs.org/lit"] = []byte(litMeta)
	r := registry.New(f)

	if _, err := r.ResolveVersion(context.Background(), "lit", "latest"); err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	r.ResetCache()
	if _, err := r.ResolveVersion(context.Background(), "lit", "latest"); err != nil {
		t.Fatalf("ResolveVersion: %v", err)
	}
	if f.calls["https://registry.npmjs.org/lit"] != 2 {
		t.Errorf("expected a re-fetch after ResetCache, got %d calls", f.calls["https://registry.npmjs.org/lit"])
	}
}

func TestFetchManifestFallsThroughProviders(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://cdn.jsdelivr.net/npm/lit@2.8.0/package.json"] = []byte(`{"name":"lit","version":"2.8.0","main":"index.js"}`)
	r := registry.New(f, registry.WithProviderChain(registry.EsmSh, registry.Jsdelivr, registry.Unpkg))

	pkg, err := r.FetchManifest(context.Background(), "lit", "2.8.0")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if pkg.Name != "lit" {
		t.Errorf("got %+v", pkg)
	}
	if f.calls["https://esm.sh/lit@2.8.0/package.json"] == 0 {
		t.Error("expected esm.sh to be tried first")
	}
}

func TestFetchManifestIsLoadedOnce(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://esm.sh/lit@2.8.0/package.json"] = []byte(`{"name":"lit","version":"2.8.0"}`)
	r := registry.New(f)

	if _, err := r.FetchManifest(context.Background(), "lit", "2.8.0"); err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if _, err := r.FetchManifest(context.Background(), "lit", "2.8.0"); err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if f.calls["https://esm.sh/lit@2.8.0/package.json"] != 1 {
		t.Errorf("expected manifest to be fetched once, got %d", f.calls["https://esm.sh/lit@2.8.0/package.json"])
	}
}

func TestFetchManifestAllProvidersFail(t *testing.T) {
	f := newFakeFetcher()
	r := registry.New(f)

	if _, err := r.FetchManifest(context.Background(), "lit", "2.8.0"); err == nil {
		t.Error("expected an error when every provider fails")
	}
}

func TestFetchFile(t *testing.T) {
	f := newFakeFetcher()
	f.byURL["https://esm.sh/lit@2.8.0/index.js"] = []byte("export {}")
	r := registry.New(f)

	data, err := r.FetchFile(context.Background(), "lit", "2.8.0", "index.js")
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	if string(data) != "export {}" {
		t.Errorf("got %q", data)
	}
}

func TestProviderByName(t *testing.T) {
	if p, ok := registry.ProviderByName("esmsh"); !ok || p.Name != "esm.sh" {
		t.Errorf("got %+v, %v", p, ok)
	}
	if _, ok := registry.ProviderByName("nope"); ok {
		t.Error("expected unknown provider name to miss")
	}
}
