package agent

import (
	"context"
	"testing"
	"time"
)

func TestSpawnRegistersRunningSubagent(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")

	got, ok := m.Get(h.ID())
	if !ok {
		t.Fatal("Get did not find the spawned handle")
	}
	if got.info().Status != SubagentRunning {
		t.Fatalf("status = %v, want running", got.info().Status)
	}
	if len(m.List()) != 1 {
		t.Fatalf("List() len = %d, want 1", len(m.List()))
	}
}

func TestCompleteClosesSubscribersAndUpdatesStatus(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")
	ch := h.Subscribe()

	h.Progress("reading file.go")
	h.Complete(nil)

	msg, ok := <-ch
	if !ok || msg != "reading file.go" {
		t.Fatalf("first recv = %q, %v", msg, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Complete")
	}
	if got := h.info().Status; got != SubagentCompleted {
		t.Fatalf("status = %v, want completed", got)
	}
}

func TestCompleteWithErrorMarksFailed(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")
	h.Complete(context.DeadlineExceeded)

	info := h.info()
	if info.Status != SubagentFailed {
		t.Fatalf("status = %v, want failed", info.Status)
	}
	if info.Error == "" {
		t.Fatal("expected Error to be recorded")
	}
}

func TestStopCancelsContextAndMarksKilled(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")
	h.Stop()

	select {
	case <-h.Context().Done():
	default:
		t.Fatal("expected subagent context to be cancelled")
	}
	if got := h.info().Status; got != SubagentKilled {
		t.Fatalf("status = %v, want killed", got)
	}
}

func TestProgressDoesNotBlockWithoutSubscribers(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			h.Progress("tick")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Progress blocked with no subscribers")
	}
}

func TestRemoveDropsHandle(t *testing.T) {
	m := NewLaborMarket()
	h := m.Spawn(context.Background(), "explore", "find the bug")
	m.Remove(h.ID())

	if _, ok := m.Get(h.ID()); ok {
		t.Fatal("expected handle to be gone after Remove")
	}
}
