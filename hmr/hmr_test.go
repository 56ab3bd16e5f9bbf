package hmr_test

import (
	"testing"

	"bundlr.dev/bundlr/hmr"
)

func TestStateAcceptMarksHot(t *testing.T) {
	s := hmr.NewState()
	if s.IsHot {
		t.Fatal("expected cold state before Accept")
	}
	s.Accept(nil)
	if !s.IsHot {
		t.Error("expected Accept to mark the module hot")
	}
}

func TestStateRunAcceptClearsDirtyAndInvokesHandlers(t *testing.T) {
	s := hmr.NewState()
	var gotData any
	s.Accept(func(data any) { gotData = data })
	s.Data = "prior"
	s.MarkDirty()

	s.RunAccept()

	if s.IsDirty {
		t.Error("expected IsDirty cleared after RunAccept")
	}
	if gotData != "prior" {
		t.Errorf("got %v", gotData)
	}
}

func TestStateRunDisposeClearsHandlers(t *testing.T) {
	s := hmr.NewState()
	calls := 0
	s.Dispose(func(data any) { calls++ })

	s.RunDispose()
	s.RunDispose()

	if calls != 1 {
		t.Errorf("expected dispose handler to run once and then clear, ran %d times", calls)
	}
}

func TestControllerStateCreatesOnDemand(t *testing.T) {
	c := hmr.NewController()
	s1 := c.State("/a.js")
	s2 := c.State("/a.js")
	if s1 != s2 {
		t.Error("expected the same State instance for repeated calls")
	}
}

func TestControllerForget(t *testing.T) {
	c := hmr.NewController()
	s1 := c.State("/a.js")
	s1.Accept(nil)
	c.Forget("/a.js")

	s2 := c.State("/a.js")
	if s2.IsHot {
		t.Error("expected a fresh cold state after Forget")
	}
}

func TestEvaluateSelfAcceptingStaysDirty(t *testing.T) {
	c := hmr.NewController()
	c.State("/a.js").Accept(nil)

	decision := c.Evaluate("/a.js", func(string) []string { return nil })

	if decision.FullReload {
		t.Fatal("expected self-accepting module not to escalate")
	}
	if len(decision.Dirty) != 1 || decision.Dirty[0] != "/a.js" {
		t.Errorf("got %v", decision.Dirty)
	}
}

func TestEvaluateHotAncestorStaysDirty(t *testing.T) {
	c := hmr.NewController()
	c.State("/parent.js").Accept(nil)

	decision := c.Evaluate("/child.js", func(string) []string { return []string{"/parent.js"} })

	if decision.FullReload {
		t.Fatal("expected a hot ancestor to absorb the edit")
	}
	if len(decision.Dirty) != 1 || decision.Dirty[0] != "/parent.js" {
		t.Errorf("got %v", decision.Dirty)
	}
}

func TestEvaluateColdAncestorEscalates(t *testing.T) {
	c := hmr.NewController()
	// /parent.js never calls accept()
	c.State("/parent.js")

	decision := c.Evaluate("/child.js", func(string) []string { return []string{"/parent.js"} })

	if !decision.FullReload {
		t.Error("expected a cold ancestor to force a full reload")
	}
}

func TestEvaluateNoAncestorsEscalates(t *testing.T) {
	c := hmr.NewController()
	decision := c.Evaluate("/orphan.js", func(string) []string { return nil })
	if !decision.FullReload {
		t.Error("expected an edit with no hot boundary anywhere to escalate")
	}
}
