package denwarenji

import (
	"testing"

	"github.com/gencode-ai/agentcore/internal/message"
)

func TestSendRejectsOutOfRangeCheckpoint(t *testing.T) {
	d := New()
	d.SetNCheckpoints(2)

	if err := d.Send(2, nil); err == nil {
		t.Fatal("expected Send with checkpoint id == n_checkpoints to fail")
	}
	if err := d.Send(-1, nil); err == nil {
		t.Fatal("expected Send with negative checkpoint id to fail")
	}
}

func TestSendAndFetch(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)

	msgs := []message.Message{message.NewUserMessage("from your future self")}
	if err := d.Send(1, msgs); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mail, ok := d.FetchPendingDMail()
	if !ok {
		t.Fatal("expected a pending D-Mail")
	}
	if mail.CheckpointID != 1 {
		t.Errorf("expected checkpoint id 1, got %d", mail.CheckpointID)
	}

	if _, ok := d.FetchPendingDMail(); ok {
		t.Fatal("expected FetchPendingDMail to be one-shot")
	}
}

func TestSendOverwritesPrior(t *testing.T) {
	d := New()
	d.SetNCheckpoints(5)

	if err := d.Send(0, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Send(3, nil); err != nil {
		t.Fatal(err)
	}

	mail, ok := d.FetchPendingDMail()
	if !ok {
		t.Fatal("expected a pending D-Mail")
	}
	if mail.CheckpointID != 3 {
		t.Errorf("expected the later Send to win, got checkpoint id %d", mail.CheckpointID)
	}
}
