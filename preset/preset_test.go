package preset_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bundlr.dev/bundlr/preset"
)

type stubTransformer struct {
	ext string
}

func (s *stubTransformer) Test(path string) bool { return strings.HasSuffix(path, s.ext) }
func (s *stubTransformer) Transform(ctx context.Context, in preset.Input) (preset.Output, error) {
	return preset.Output{Code: in.Source}, nil
}

func TestMapTransformersFirstMatchWins(t *testing.T) {
	p := &preset.Preset{Transformers: []preset.Transformer{
		&stubTransformer{ext: ".js"},
		&stubTransformer{ext: ".ts"},
		&stubTransformer{ext: ".ts"},
	}}

	tr := p.MapTransformers("/index.ts")
	if tr == nil {
		t.Fatal("expected a transformer to match .ts")
	}
	if tr != p.Transformers[1] {
		t.Error("expected the first matching transformer to win")
	}
}

func TestMapTransformersNoMatch(t *testing.T) {
	p := &preset.Preset{Transformers: []preset.Transformer{&stubTransformer{ext: ".js"}}}
	if tr := p.MapTransformers("/style.css"); tr != nil {
		t.Errorf("expected nil, got %v", tr)
	}
}

func TestAugmentDependenciesSeparatesFailures(t *testing.T) {
	p := &preset.Preset{}
	resolve := func(specifier string) (string, error) {
		if specifier == "./missing" {
			return "", errors.New("not found")
		}
		return "/resolved" + specifier[1:], nil
	}

	resolved, failed := p.AugmentDependencies([]string{"./a", "./missing", "./b"}, resolve)

	if len(resolved) != 2 || len(failed) != 1 {
		t.Fatalf("got resolved=%v failed=%v", resolved, failed)
	}
	if _, ok := failed["./missing"]; !ok {
		t.Errorf("expected ./missing to be recorded as failed")
	}
}

func TestRegistryFirstRegisteredIsDefault(t *testing.T) {
	r := preset.NewRegistry()
	r.Register(&preset.Preset{Name: "default"})
	r.Register(&preset.Preset{Name: "react"})

	p, ok := r.Get("")
	if !ok || p.Name != "default" {
		t.Errorf("got %+v, %v", p, ok)
	}
}

func TestRegistryGetByName(t *testing.T) {
	r := preset.NewRegistry()
	r.Register(&preset.Preset{Name: "default"})
	r.Register(&preset.Preset{Name: "react"})

	p, ok := r.Get("react")
	if !ok || p.Name != "react" {
		t.Errorf("got %+v, %v", p, ok)
	}
}

func TestRegistryGetMissing(t *testing.T) {
	r := preset.NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Error("expected miss for unregistered preset")
	}
}
