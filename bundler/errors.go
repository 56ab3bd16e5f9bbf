package bundler

import "fmt"

// ModuleNotFoundError is raised by an FS miss or a resolver miss. It is
// non-fatal to modules outside the failing closure.
type ModuleNotFoundError struct {
	Path     string
	Origin   string
	Cause    error
}

func (e *ModuleNotFoundError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("module not found: %q (imported from %q)", e.Path, e.Origin)
	}
	return fmt.Sprintf("module not found: %q", e.Path)
}

func (e *ModuleNotFoundError) Unwrap() error { return e.Cause }

// TransformError wraps a transformer failure with the offending module
// path. It is captured on the module, not thrown through the scheduler.
type TransformError struct {
	Path  string
	Cause error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Path, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// EntryPointUnresolvedError means no candidate in package.json or preset
// defaults resolved to an entry module. The orchestrator presents an
// empty-state UI for this error rather than a generic one.
type EntryPointUnresolvedError struct {
	Template string
}

func (e *EntryPointUnresolvedError) Error() string {
	return fmt.Sprintf("no entry point found for template %q", e.Template)
}

// RegistryFetchError means the CDN manifest or package fetch exhausted
// retries and fallbacks. Fatal for the current compile.
type RegistryFetchError struct {
	Package string
	Version string
	Cause   error
}

func (e *RegistryFetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s: %v", e.Package, e.Version, e.Cause)
}

func (e *RegistryFetchError) Unwrap() error { return e.Cause }

// EvaluationError wraps a runtime exception raised during evaluate().
type EvaluationError struct {
	Path  string
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("runtime exception in %s: %v", e.Path, e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

// PresetMissingError means a compile was attempted before preset
// initialization. Always a programmer error; fatal.
type PresetMissingError struct {
	Template string
}

func (e *PresetMissingError) Error() string {
	return fmt.Sprintf("preset %q not initialized", e.Template)
}
