package flow

import "testing"

func ralphNodes() (map[string]Node, map[string][]Edge) {
	nodes := map[string]Node{
		"BEGIN": {ID: "BEGIN", Kind: KindBegin},
		"END":   {ID: "END", Kind: KindEnd},
		"R1":    {ID: "R1", Label: "do the task", Kind: KindTask},
		"R2":    {ID: "R2", Label: "continue?", Kind: KindDecision},
	}
	outgoing := map[string][]Edge{
		"BEGIN": {{Src: "BEGIN", Dst: "R1"}},
		"R1":    {{Src: "R1", Dst: "R2"}},
		"R2": {
			{Src: "R2", Dst: "R2", Label: "CONTINUE"},
			{Src: "R2", Dst: "END", Label: "STOP"},
		},
		"END": nil,
	}
	return nodes, outgoing
}

func TestNewValidatesRalphShapedFlow(t *testing.T) {
	nodes, outgoing := ralphNodes()
	f, err := New(nodes, outgoing)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if f.BeginID != "BEGIN" || f.EndID != "END" {
		t.Fatalf("begin/end = %q/%q", f.BeginID, f.EndID)
	}
}

func TestNewRejectsMissingBeginOrEnd(t *testing.T) {
	nodes := map[string]Node{"T": {ID: "T", Kind: KindTask}}
	if _, err := New(nodes, map[string][]Edge{}); err == nil {
		t.Fatal("expected error for a flow with no begin/end nodes")
	}
}

func TestNewRejectsUnreachableEnd(t *testing.T) {
	nodes := map[string]Node{
		"BEGIN": {ID: "BEGIN", Kind: KindBegin},
		"END":   {ID: "END", Kind: KindEnd},
	}
	outgoing := map[string][]Edge{"BEGIN": nil}
	if _, err := New(nodes, outgoing); err == nil {
		t.Fatal("expected error when end is unreachable from begin")
	}
}

func TestNewRejectsUnlabeledDecisionEdge(t *testing.T) {
	nodes := map[string]Node{
		"BEGIN": {ID: "BEGIN", Kind: KindBegin},
		"END":   {ID: "END", Kind: KindEnd},
		"D":     {ID: "D", Kind: KindDecision},
	}
	outgoing := map[string][]Edge{
		"BEGIN": {{Src: "BEGIN", Dst: "D"}},
		"D": {
			{Src: "D", Dst: "END", Label: "STOP"},
			{Src: "D", Dst: "END", Label: ""},
		},
	}
	if _, err := New(nodes, outgoing); err == nil {
		t.Fatal("expected error for an unlabeled decision edge")
	}
}

func TestNewRejectsDuplicateDecisionLabels(t *testing.T) {
	nodes := map[string]Node{
		"BEGIN": {ID: "BEGIN", Kind: KindBegin},
		"END":   {ID: "END", Kind: KindEnd},
		"D":     {ID: "D", Kind: KindDecision},
	}
	outgoing := map[string][]Edge{
		"BEGIN": {{Src: "BEGIN", Dst: "D"}},
		"D": {
			{Src: "D", Dst: "END", Label: "STOP"},
			{Src: "D", Dst: "END", Label: "STOP"},
		},
	}
	if _, err := New(nodes, outgoing); err == nil {
		t.Fatal("expected error for duplicate decision edge labels")
	}
}

func TestNewRejectsDecisionWithOneEdge(t *testing.T) {
	nodes := map[string]Node{
		"BEGIN": {ID: "BEGIN", Kind: KindBegin},
		"END":   {ID: "END", Kind: KindEnd},
		"D":     {ID: "D", Kind: KindDecision},
	}
	outgoing := map[string][]Edge{
		"BEGIN": {{Src: "BEGIN", Dst: "D"}},
		"D":     {{Src: "D", Dst: "END", Label: "STOP"}},
	}
	if _, err := New(nodes, outgoing); err == nil {
		t.Fatal("expected error for a decision node with only one outgoing edge")
	}
}

func TestParseChoiceTakesLastTag(t *testing.T) {
	text := "thinking... <choice>CONTINUE</choice> wait, <choice> STOP </choice>"
	if got := ParseChoice(text); got != "STOP" {
		t.Fatalf("ParseChoice = %q, want %q", got, "STOP")
	}
}

func TestParseChoiceNoTagReturnsEmpty(t *testing.T) {
	if got := ParseChoice("no tag here"); got != "" {
		t.Fatalf("ParseChoice = %q, want empty", got)
	}
}
