package bundler

// CompileRequest is the inbound "compile" message: a snapshot of every
// source file the host wants mounted, plus the preset to compile against.
type CompileRequest struct {
	Modules         map[string]FileInput `json:"modules"`
	Template        string               `json:"template"`
	HasFileResolver bool                 `json:"hasFileResolver,omitempty"`
	LogLevel        string               `json:"logLevel,omitempty"`
}

// FileInput is one entry of a CompileRequest's Modules map.
type FileInput struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

// EvaluateCommand is the inbound "evaluate" message: a console REPL
// pass-through command run against the live evaluation context.
type EvaluateCommand struct {
	Command string `json:"command"`
}

// FSRequest is the outbound "fs-request" message: the async bridge layer
// asking the host to resolve a path it cannot satisfy locally. The host
// answers with a matching FSResponse carrying the same RequestID.
type FSRequest struct {
	RequestID string `json:"requestId"`
	Path      string `json:"path"`
}

// FSResponse answers a prior async file-system request raised on the
// outbound channel by the async bridge layer.
type FSResponse struct {
	RequestID string `json:"requestId"`
	Result    []byte `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Status is one of the linear phases a compile request passes through.
type Status string

const (
	StatusInitializing           Status = "initializing"
	StatusInstallingDependencies Status = "installing-dependencies"
	StatusTranspiling            Status = "transpiling"
	StatusEvaluating             Status = "evaluating"
	StatusDone                   Status = "done"
	StatusError                  Status = "error"
)

// StatusEvent is the outbound "status" message.
type StatusEvent struct {
	Status Status `json:"status"`
}

// InitializedEvent is the outbound "initialized" message, sent once per
// bundler instance on construction.
type InitializedEvent struct{}

// StartEvent is the outbound "start" message.
type StartEvent struct {
	FirstLoad bool `json:"firstLoad"`
}

// SourceInfo is one module's entry in a StateEvent snapshot.
type SourceInfo struct {
	IsEntry      bool   `json:"isEntry"`
	FileName     string `json:"fileName"`
	CompiledCode string `json:"compiledCode"`
}

// TranspiledModule wraps SourceInfo the way the wire format nests it.
type TranspiledModule struct {
	Source SourceInfo `json:"source"`
}

// State is the snapshot body of a StateEvent.
type State struct {
	// TranspiledModules is keyed by "<path>:" — the trailing colon is
	// preserved for backwards compatibility with existing consumers.
	TranspiledModules map[string]TranspiledModule `json:"transpiledModules"`
}

// StateEvent is the outbound "state" message.
type StateEvent struct {
	State State `json:"state"`
}

// DoneEvent is the outbound "done" message. The field name
// "compilatonError" (missing an "i") is preserved for wire compatibility.
type DoneEvent struct {
	CompilatonError bool `json:"compilatonError"`
}

// SuccessEvent is the outbound "success" message.
type SuccessEvent struct{}

// Payload carries extra diagnostic detail on an ActionEvent.
type Payload struct {
	Frames []string `json:"frames,omitempty"`
}

// ActionEvent is the outbound "action" message, used for both compile-time
// and runtime error presentation.
type ActionEvent struct {
	Action  string  `json:"action"`
	Title   string  `json:"title"`
	Line    int     `json:"line,omitempty"`
	Column  int     `json:"column,omitempty"`
	Path    string  `json:"path,omitempty"`
	Message string  `json:"message"`
	Payload Payload `json:"payload,omitempty"`
}

// ConsoleEvent is the outbound "console" message: either a log line or a
// REPL evaluation result, never both.
type ConsoleEvent struct {
	Log    *string `json:"log,omitempty"`
	Result *string `json:"result,omitempty"`
}

// ResizeEvent is the outbound "resize" message, forwarded from the DOM
// resize watcher (an external collaborator, out of scope here).
type ResizeEvent struct {
	Height int `json:"height"`
}

// RefreshEvent is both the inbound and outbound "refresh" message: the host
// asks for a full recompile of the current files, and the bundler may in
// turn ask the host to reload when HMR cannot apply an edit in place.
type RefreshEvent struct{}

// BundleFile is the server-boundary bundle format.
type BundleFile struct {
	Files    map[string]BundleEntry `json:"files"`
	Entry    string                 `json:"entry"`
	Template string                 `json:"template,omitempty"`
}

// BundleEntry is one file's content in a BundleFile.
type BundleEntry struct {
	Code string `json:"code"`
}
