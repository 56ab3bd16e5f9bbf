//go:build js && wasm

/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package main is the WASM entry point for the bundler, exposing the host
// message protocol (compile, evaluate, refresh, fs-response in; status,
// state, done, action, console out) across the syscall/js boundary.
package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"bundlr.dev/bundlr/bundler"
	"bundlr.dev/bundlr/preset"
	"bundlr.dev/bundlr/registry"
	"bundlr.dev/bundlr/transform"
)

// Version is the bundler WASM build version.
const Version = "0.1.0"

// bridge owns the single Bundler instance and the host's message callback.
type bridge struct {
	b *bundler.Bundler
	r *asyncResolver

	mu      sync.Mutex
	onEvent js.Value
}

func main() {
	presets := preset.NewRegistry()
	transform.Register(presets)
	reg := registry.New(registry.NewHTTPFetcher())
	resolver := newAsyncResolver()

	br := &bridge{
		r: resolver,
	}
	resolver.emit = br.emit
	br.b = bundler.New(bundler.Config{
		Presets:       presets,
		Registry:      reg,
		AsyncResolver: resolver,
	})

	go br.drainStatus()

	ns := make(map[string]any)
	ns["version"] = Version
	ns["onMessage"] = js.FuncOf(br.setOnMessage)
	ns["postMessage"] = js.FuncOf(br.postMessage)
	js.Global().Set("bundlr", js.ValueOf(ns))

	br.emit("initialized", bundler.InitializedEvent{})

	select {}
}

// setOnMessage registers the host's outbound event callback: onEvent(type, jsonPayload).
func (br *bridge) setOnMessage(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	br.mu.Lock()
	br.onEvent = args[0]
	br.mu.Unlock()
	return nil
}

func (br *bridge) emit(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	br.mu.Lock()
	cb := br.onEvent
	br.mu.Unlock()
	if cb.IsUndefined() || cb.IsNull() {
		return
	}
	cb.Invoke(kind, string(data))
}

func (br *bridge) drainStatus() {
	for s := range br.b.Status() {
		br.emit("status", s)
	}
}

// postMessage(type string, jsonPayload string) dispatches one inbound
// protocol message. Unknown types are ignored.
func (br *bridge) postMessage(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return nil
	}
	kind := args[0].String()
	raw := []byte(args[1].String())

	switch kind {
	case "compile":
		go br.handleCompile(raw)
	case "evaluate":
		go br.handleEvaluate(raw)
	case "refresh":
		go br.handleRefresh()
	case "fs-response":
		br.handleFSResponse(raw)
	}
	return nil
}

func (br *bridge) handleCompile(raw []byte) {
	var req bundler.CompileRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		br.emitError("compile-error", err)
		return
	}

	ctx := context.Background()
	ev, err := br.b.Compile(ctx, req)
	if err != nil {
		br.emitError("compile-error", err)
		br.emit("done", bundler.DoneEvent{CompilatonError: true})
		return
	}

	br.emitState()

	if _, err := ev.Run(); err != nil {
		br.emitError("runtime-error", err)
		br.emit("done", bundler.DoneEvent{CompilatonError: true})
		return
	}

	br.emit("done", bundler.DoneEvent{CompilatonError: false})
}

func (br *bridge) handleEvaluate(raw []byte) {
	var cmd bundler.EvaluateCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return
	}
	vm := br.b.Runtime()
	if vm == nil {
		return
	}
	v, err := vm.RunString(cmd.Command)
	if err != nil {
		msg := err.Error()
		br.emit("console", bundler.ConsoleEvent{Result: &msg})
		return
	}
	result := v.String()
	br.emit("console", bundler.ConsoleEvent{Result: &result})
}

func (br *bridge) handleRefresh() {
	br.emit("refresh", bundler.RefreshEvent{})
}

func (br *bridge) handleFSResponse(raw []byte) {
	var resp bundler.FSResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return
	}
	br.r.resolve(resp)
}

func (br *bridge) emitState() {
	modules := br.b.CompiledModules()
	entry := br.b.EntryPath()
	state := bundler.State{TranspiledModules: make(map[string]bundler.TranspiledModule, len(modules))}
	for path, code := range modules {
		state.TranspiledModules[path+":"] = bundler.TranspiledModule{
			Source: bundler.SourceInfo{
				IsEntry:      path == entry,
				FileName:     path,
				CompiledCode: string(code),
			},
		}
	}
	br.emit("state", bundler.StateEvent{State: state})
}

func (br *bridge) emitError(action string, err error) {
	br.emit("action", bundler.ActionEvent{
		Action:  action,
		Title:   "Compile error",
		Message: err.Error(),
	})
}
