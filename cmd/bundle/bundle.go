// Package bundle provides the build and watch commands for the bundler CLI.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"bundlr.dev/bundlr/bundler"
	"bundlr.dev/bundlr/fs"
	"bundlr.dev/bundlr/htmlout"
	"bundlr.dev/bundlr/internal/output"
	"bundlr.dev/bundlr/preset"
	"bundlr.dev/bundlr/registry"
	"bundlr.dev/bundlr/transform"
)

// defaultGlob matches every file a project source tree plausibly needs
// mounted: script, style, manifest and markup files.
const defaultGlob = "**/*.{js,mjs,cjs,jsx,ts,tsx,json,css,html}"

// Cmd is the build cobra command: it compiles and evaluates a project
// directory once and writes the result.
var Cmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Compile and evaluate a project directory",
	Long: `build reads a project directory into the bundler's virtual
filesystem, compiles its entry point and dependency closure, evaluates the
result, and writes the bundle output (embedded in the project's index.html,
if one exists, or printed as a single evaluator-ready script otherwise).`,
	Example: `  # Build the current directory
  bundlr build

  # Build a specific directory, writing the result into its index.html
  bundlr build ./site

  # Build without fetching CDN dependencies
  bundlr build --offline`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

// WatchCmd recompiles a project on every source file change.
var WatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Recompile a project directory on every file change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	Cmd.Flags().String("glob", defaultGlob, "Glob pattern selecting files to mount")
	Cmd.Flags().String("template", "", "Preset template name (default: the registry's default preset)")
	Cmd.Flags().Bool("offline", false, "Disable CDN package resolution")

	WatchCmd.Flags().String("glob", defaultGlob, "Glob pattern selecting files to mount")
	WatchCmd.Flags().String("template", "", "Preset template name (default: the registry's default preset)")
	WatchCmd.Flags().Bool("offline", false, "Disable CDN package resolution")
}

func runBuild(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()

	b := newBundler(cmd)
	ev, err := compileOnce(cmd, b, osfs, root)
	if err != nil {
		output.CompileError(err)
		return err
	}

	if _, err := ev.Run(); err != nil {
		output.CompileError(err)
		return err
	}

	return writeResult(osfs, root, b)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(args)
	if err != nil {
		return err
	}
	osfs := fs.NewOSFileSystem()
	b := newBundler(cmd)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()
	if err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(p)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	recompile := func() {
		ev, err := compileOnce(cmd, b, osfs, root)
		if err != nil {
			output.CompileError(err)
			return
		}
		if _, err := ev.Run(); err != nil {
			output.CompileError(err)
			return
		}
		fmt.Println("rebuilt")
	}
	recompile()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				recompile()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			output.CompileError(err)
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	}
}

func newBundler(cmd *cobra.Command) *bundler.Bundler {
	presets := preset.NewRegistry()
	transform.Register(presets)

	offline, _ := cmd.Flags().GetBool("offline")
	var reg *registry.Registry
	if !offline {
		reg = registry.New(registry.NewHTTPFetcher())
	}

	b := bundler.New(bundler.Config{Presets: presets, Registry: reg})
	go drainStatus(b)
	return b
}

func drainStatus(b *bundler.Bundler) {
	for s := range b.Status() {
		output.Status(s.Status)
	}
}

func projectRoot(args []string) (string, error) {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid project directory: %w", err)
	}
	return abs, nil
}

// compileOnce walks root for files matching the configured glob, reads
// them into a CompileRequest, and runs one compile pass.
func compileOnce(cmd *cobra.Command, b *bundler.Bundler, osfs fs.FileSystem, root string) (*bundler.Evaluator, error) {
	ctx := cmd.Context()
	pattern, _ := cmd.Flags().GetString("glob")
	if pattern == "" {
		pattern = defaultGlob
	}

	modules := make(map[string]bundler.FileInput)
	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(relPath string, d os.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if strings.Contains(relPath, "node_modules/") {
			return nil
		}
		content, err := osfs.ReadFile(filepath.Join(root, relPath))
		if err != nil {
			return err
		}
		vpath := "/" + relPath
		modules[vpath] = bundler.FileInput{Path: vpath, Code: string(content)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	template, _ := cmd.Flags().GetString("template")
	return b.Compile(ctx, bundler.CompileRequest{Modules: modules, Template: template})
}

// writeResult writes every compiled module under root/dist, named after
// its virtual path, and embeds the entry module's script tag into the
// project's index.html if one was mounted. Without an index.html, the
// entry module's compiled code is written via the shared output writer
// instead.
func writeResult(osfs fs.FileSystem, root string, b *bundler.Bundler) error {
	compiled := b.CompiledModules()
	entry := b.EntryPath()

	distDir := filepath.Join(root, "dist")
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	for vpath, code := range compiled {
		outPath := filepath.Join(distDir, filepath.FromSlash(strings.TrimPrefix(vpath, "/")))
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("build: %w", err)
		}
		if err := osfs.WriteFile(outPath, code, 0644); err != nil {
			return fmt.Errorf("build: writing %s: %w", outPath, err)
		}
	}

	indexPath := filepath.Join(root, "index.html")
	content, err := osfs.ReadFile(indexPath)
	if err != nil {
		if entry == "" {
			return output.Bundle(osfs, []byte("// build complete\n"))
		}
		return output.Bundle(osfs, compiled[entry])
	}

	entrySrc := "./dist" + entry
	newContent, err := htmlout.Inject(content, nil, entrySrc)
	if err != nil {
		return err
	}
	return osfs.WriteFile(indexPath, newContent, 0644)
}
