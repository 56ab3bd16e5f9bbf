// Package hmr implements per-module hot-replacement state: dirty/accepted
// tracking, dispose/accept handler lists, and the escalation decision that
// turns an edit into either an in-place re-evaluation or a full reload.
package hmr

import "sync"

// Handler is a dispose or accept callback. Both kinds receive the
// module's current opaque Data.
type Handler func(data any)

// State is one module's hot-replacement bookkeeping.
type State struct {
	mu sync.Mutex

	// IsHot reports whether this module opted into HMR (called
	// import.meta.hot.accept at least once, including self-accept).
	IsHot bool
	// IsDirty marks a module that must be re-evaluated on the next pass.
	IsDirty bool
	// Invalidated marks a module whose accept handler itself requested
	// invalidation, forcing the owning compile to restart.
	Invalidated bool
	// Data is opaque user state carried across a dispose/accept cycle.
	Data any

	disposeHandlers []Handler
	acceptHandlers  []Handler
}

// NewState returns a fresh, cold (non-hot) hot-state record.
func NewState() *State {
	return &State{}
}

// Accept registers handler as this module's accept callback (or marks it
// self-accepting if handler is nil) and flags the module hot.
func (s *State) Accept(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsHot = true
	if handler != nil {
		s.acceptHandlers = append(s.acceptHandlers, handler)
	}
}

// Dispose registers a handler run immediately before the module's next
// re-evaluation.
func (s *State) Dispose(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeHandlers = append(s.disposeHandlers, handler)
}

// Invalidate marks the module as invalidated, forcing a compile restart
// rather than an in-place accept.
func (s *State) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Invalidated = true
}

// MarkDirty flags the module for re-evaluation on the next pass.
func (s *State) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsDirty = true
}

// RunDispose invokes and clears every dispose handler, passing the current
// Data to each.
func (s *State) RunDispose() {
	s.mu.Lock()
	handlers := s.disposeHandlers
	s.disposeHandlers = nil
	data := s.Data
	s.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

// RunAccept invokes every accept handler with the current Data and clears
// the dirty flag.
func (s *State) RunAccept() {
	s.mu.Lock()
	handlers := s.acceptHandlers
	data := s.Data
	s.IsDirty = false
	s.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

// Controller decides, for a set of edited modules, which modules must be
// marked dirty (hot path) versus which edits escalate to a full page
// reload (neither a changed module nor any of its ancestors is hot).
type Controller struct {
	mu     sync.RWMutex
	states map[string]*State
}

// DependentsFunc returns every module that directly or transitively
// depends on (imports) path; the controller uses it to find whether any
// of an edit's ancestors accepted it.
type DependentsFunc func(path string) []string

// NewController returns an empty HMR controller.
func NewController() *Controller {
	return &Controller{states: make(map[string]*State)}
}

// State returns (creating if needed) the hot-state record for path.
func (c *Controller) State(path string) *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[path]
	if !ok {
		s = NewState()
		c.states[path] = s
	}
	return s
}

// Forget drops the hot-state record for path, e.g. on module removal.
func (c *Controller) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, path)
}

// Decision is the result of evaluating one edited module's HMR eligibility.
type Decision struct {
	// FullReload is true when neither the edited module nor any of its
	// dependents is hot, so the edit must escalate.
	FullReload bool
	// Dirty lists the modules that must be re-evaluated in place when
	// FullReload is false: the edited module itself when it is hot,
	// otherwise its hot dependents in the order DependentsFunc returned them.
	Dirty []string
}

// Evaluate decides how an edit to path is applied. A hot (self-accepting)
// module absorbs its own edit; otherwise every hot module among path's
// dependents is marked dirty and absorbs it. Only when no ancestor
// accepted the edit does it escalate to a full reload.
func (c *Controller) Evaluate(path string, dependents DependentsFunc) Decision {
	c.mu.RLock()
	self, ok := c.states[path]
	c.mu.RUnlock()

	if ok && self.IsHot {
		self.MarkDirty()
		return Decision{Dirty: []string{path}}
	}

	ancestors := dependents(path)
	var dirty []string
	for _, a := range ancestors {
		c.mu.RLock()
		st, ok := c.states[a]
		c.mu.RUnlock()
		if ok && st.IsHot {
			st.MarkDirty()
			dirty = append(dirty, a)
		}
	}
	if len(dirty) == 0 {
		return Decision{FullReload: true}
	}
	return Decision{Dirty: dirty}
}
