package wire

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestWire(t *testing.T) (*Wire, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "wire-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	teePath := filepath.Join(dir, "wire.jsonl")
	w, err := New(teePath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, teePath
}

func TestEmitDeliversToSubscriberInOrder(t *testing.T) {
	w, _ := newTestWire(t)
	_, sub := w.Subscribe()

	w.Emit(Event{Type: EventTurnBegin, Payload: 1})
	w.Emit(Event{Type: EventStepBegin, Payload: 2})
	w.Emit(Event{Type: EventStepBegin, Payload: 3})

	done := make(chan struct{})
	defer close(done)
	for i, want := range []string{EventTurnBegin, EventStepBegin, EventStepBegin} {
		env, ok := sub.Receive(done)
		if !ok {
			t.Fatalf("envelope %d: Receive returned false", i)
		}
		if env.Type != want {
			t.Fatalf("envelope %d: got type %q, want %q", i, env.Type, want)
		}
	}
}

func TestEmitNeverBlocksWithoutSubscribers(t *testing.T) {
	w, _ := newTestWire(t)
	done := make(chan struct{ x int }, 1)
	go func() {
		for i := 0; i < 1000; i++ {
			w.Emit(Event{Type: EventStatusUpdate, Payload: i})
		}
		done <- struct{ x int }{}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with no subscribers attached")
	}
}

func TestSendRequestResolves(t *testing.T) {
	w, _ := newTestWire(t)
	_, sub := w.Subscribe()

	reqDone := make(chan struct{})
	type result struct {
		resp Response
		ok   bool
	}
	resultCh := make(chan result, 1)
	go func() {
		resp, ok := w.SendRequest(reqDone, Request{Type: RequestApprovalRequest, Payload: "do it"})
		resultCh <- result{resp, ok}
	}()

	recvDone := make(chan struct{})
	defer close(recvDone)
	env, ok := sub.Receive(recvDone)
	if !ok || env.Kind != "request" || env.ID == "" {
		t.Fatalf("expected a request envelope with an ID, got %+v ok=%v", env, ok)
	}

	w.Resolve(env.ID, Response{Result: []byte(`"approve"`)})

	select {
	case r := <-resultCh:
		if !r.ok {
			t.Fatal("SendRequest returned ok=false")
		}
		if string(r.resp.Result) != `"approve"` {
			t.Fatalf("got result %s, want \"approve\"", r.resp.Result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendRequest did not return after Resolve")
	}
}

func TestResolveUnknownIDIsNoop(t *testing.T) {
	w, _ := newTestWire(t)
	w.Resolve("does-not-exist", Response{Result: []byte("null")})
}

func TestResolveIsOneShot(t *testing.T) {
	w, _ := newTestWire(t)
	_, sub := w.Subscribe()

	reqDone := make(chan struct{})
	resultCh := make(chan Response, 1)
	go func() {
		resp, _ := w.SendRequest(reqDone, Request{Type: RequestApprovalRequest})
		resultCh <- resp
	}()

	recvDone := make(chan struct{})
	defer close(recvDone)
	env, _ := sub.Receive(recvDone)

	w.Resolve(env.ID, Response{Result: []byte(`"first"`)})
	<-resultCh
	// A second resolve for the same (now-forgotten) ID must not panic or hang.
	w.Resolve(env.ID, Response{Result: []byte(`"second"`)})
}

func TestCloseRejectsPendingRequests(t *testing.T) {
	w, _ := newTestWire(t)
	w.Subscribe()

	reqDone := make(chan struct{})
	resultCh := make(chan Response, 1)
	go func() {
		resp, _ := w.SendRequest(reqDone, Request{Type: RequestApprovalRequest})
		resultCh <- resp
	}()

	// Give SendRequest a moment to register as pending before closing.
	time.Sleep(20 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case resp := <-resultCh:
		if resp.Err == nil || resp.Err.Code != closedErrorCode {
			t.Fatalf("got resp %+v, want canned closed rejection", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendRequest did not unblock on Close")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	w, _ := newTestWire(t)
	id, sub := w.Subscribe()
	w.Unsubscribe(id)

	done := make(chan struct{})
	defer close(done)
	if _, ok := sub.Receive(done); ok {
		t.Fatal("Receive returned ok=true on an unsubscribed subscriber")
	}
}

func TestTeeWritesJSONLAndReplayNormalizesLegacyAlias(t *testing.T) {
	w, teePath := newTestWire(t)
	w.Emit(Event{Type: EventStatusUpdate, Payload: StatusUpdatePayload{MessageID: "m1"}})
	_ = w.Close()

	data, err := os.ReadFile(teePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"type":"StatusUpdate"`) {
		t.Fatalf("tee file missing expected event type: %s", data)
	}

	legacy := strings.NewReader(`{"timestamp":1.0,"message":{"type":"ApprovalRequestResolved","payload":{"request_id":"a1","response":"approve"}}}` + "\n")
	records, err := ReadTee(legacy)
	if err != nil {
		t.Fatalf("ReadTee: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Message.Type != EventApprovalResponse {
		t.Fatalf("got type %q, want %q", records[0].Message.Type, EventApprovalResponse)
	}
}

func TestReplayReemitsAsEvents(t *testing.T) {
	w, _ := newTestWire(t)
	_, sub := w.Subscribe()

	jsonl := strings.NewReader(
		`{"timestamp":1,"message":{"type":"TurnBegin","payload":{"user_input":"hi"}}}` + "\n" +
			`{"timestamp":2,"message":{"type":"StepBegin","payload":{"step":1}}}` + "\n",
	)
	parsed, err := ReadTee(jsonl)
	if err != nil {
		t.Fatalf("ReadTee: %v", err)
	}
	Replay(w, parsed)

	done := make(chan struct{})
	defer close(done)
	env, ok := sub.Receive(done)
	if !ok || env.Type != EventTurnBegin {
		t.Fatalf("first replayed envelope = %+v ok=%v, want TurnBegin", env, ok)
	}
	env, ok = sub.Receive(done)
	if !ok || env.Type != EventStepBegin {
		t.Fatalf("second replayed envelope = %+v ok=%v, want StepBegin", env, ok)
	}
}
